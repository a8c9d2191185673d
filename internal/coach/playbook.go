package coach

import (
	_ "embed"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed playbook.yaml
var defaultPlaybook []byte

// Topic is one coaching question. When Field is set the topic is skipped
// once that lead field is known.
type Topic struct {
	ID       string `yaml:"id" validate:"required"`
	Field    string `yaml:"field"`
	Question string `yaml:"question" validate:"required"`
}

// StagePlan lists the topics to raise while a lead sits in a stage.
type StagePlan struct {
	Stage  Stage   `yaml:"stage" validate:"min=1,max=5"`
	Name   string  `yaml:"name" validate:"required"`
	Topics []Topic `yaml:"topics" validate:"required,min=1,dive"`
}

// Heuristic adds Note when any keyword appears in the RM's notes.
type Heuristic struct {
	Keywords []string `yaml:"keywords" validate:"required,min=1"`
	Note     string   `yaml:"note" validate:"required"`
}

// CallStep is one section of the suggested call structure.
type CallStep struct {
	Title  string   `yaml:"title" validate:"required"`
	Points []string `yaml:"points" validate:"required,min=1"`
}

// Playbook is the static coaching content: questions per stage, talking
// points and keyword heuristics.
type Playbook struct {
	RateFloor           float64     `yaml:"rate_floor" validate:"gt=0"`
	MaxQuestions        int         `yaml:"max_questions" validate:"min=1,max=10"`
	MinBriefingChars    int         `yaml:"min_briefing_chars" validate:"gte=0"`
	Intro               string      `yaml:"intro" validate:"required"`
	FallbackQuestion    string      `yaml:"fallback_question" validate:"required"`
	FollowupPrompt      string      `yaml:"followup_prompt" validate:"required"`
	Stages              []StagePlan `yaml:"stages" validate:"len=5,dive"`
	General             []Topic     `yaml:"general" validate:"dive"`
	TalkingPoints       []string    `yaml:"talking_points" validate:"required,min=1"`
	Opportunities       []Heuristic `yaml:"opportunities" validate:"dive"`
	Risks               []Heuristic `yaml:"risks" validate:"dive"`
	OpportunityFallback string      `yaml:"opportunity_fallback" validate:"required"`
	RiskFallback        string      `yaml:"risk_fallback" validate:"required"`
	BriefingObjective   string      `yaml:"briefing_objective" validate:"required"`
	CallStructure       []CallStep  `yaml:"call_structure" validate:"required,min=1,dive"`
	PostCallNote        string      `yaml:"post_call_note" validate:"required"`

	byStage map[Stage]StagePlan
}

// DefaultPlaybook returns the embedded playbook.
func DefaultPlaybook() (*Playbook, error) {
	return ParsePlaybook(defaultPlaybook)
}

// LoadPlaybook reads a playbook from path, or the embedded one when path is empty.
func LoadPlaybook(path string) (*Playbook, error) {
	if path == "" {
		return DefaultPlaybook()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.In("playbook").With("path", path).Wrapf(err, "failed to read playbook")
	}
	pb, err := ParsePlaybook(data)
	if err != nil {
		return nil, oops.In("playbook").With("path", path).Wrap(err)
	}
	return pb, nil
}

// ParsePlaybook decodes and validates a YAML playbook.
func ParsePlaybook(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, oops.In("playbook").Wrapf(err, "failed to parse playbook YAML")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(pb); err != nil {
		return nil, oops.In("playbook").Wrapf(err, "failed to validate playbook")
	}

	pb.byStage = make(map[Stage]StagePlan, len(pb.Stages))
	seen := make(map[string]bool)
	for _, plan := range pb.Stages {
		if _, dup := pb.byStage[plan.Stage]; dup {
			return nil, oops.In("playbook").With("stage", plan.Stage).Errorf("stage listed twice")
		}
		pb.byStage[plan.Stage] = plan
		for _, t := range plan.Topics {
			if seen[t.ID] {
				return nil, oops.In("playbook").With("topic", t.ID).Errorf("duplicate topic id")
			}
			seen[t.ID] = true
		}
	}
	for _, t := range pb.General {
		if seen[t.ID] {
			return nil, oops.In("playbook").With("topic", t.ID).Errorf("duplicate topic id")
		}
		seen[t.ID] = true
	}

	pb.Intro = strings.TrimSpace(pb.Intro)
	pb.FollowupPrompt = strings.TrimSpace(pb.FollowupPrompt)
	return &pb, nil
}

// Plan returns the stage plan for s.
func (p *Playbook) Plan(s Stage) StagePlan {
	return p.byStage[s]
}

// StageName returns the display name of a stage.
func (p *Playbook) StageName(s Stage) string {
	if plan, ok := p.byStage[s]; ok {
		return plan.Name
	}
	return "Stage " + s.String()
}
