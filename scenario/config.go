package scenario

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vedsirdeshmukh/are-sim/event"
	"github.com/vedsirdeshmukh/are-sim/validate"
)

// FileConfig is the on-disk YAML shape of a scenario's timing and future
// event graph (spec §4.7, §6's persistence shape). Apps are registered
// in code, not data — a YAML app name would still need a Go constructor
// behind it, so FileConfig only declares the parts of a scenario that
// are genuinely data: timing and the event dependency graph.
type FileConfig struct {
	Name                   string        `yaml:"name"`
	StartTime              time.Time     `yaml:"start_time"`
	DurationSeconds        *int          `yaml:"duration_seconds"`
	TimeIncrementInSeconds int           `yaml:"time_increment_in_seconds"`
	Events                 []EventConfig `yaml:"events"`
}

// EventConfig is one declaratively-authored future event.
type EventConfig struct {
	ID           string `yaml:"id"`
	Kind         string `yaml:"kind"` // action | condition_check | validation | agent_validation | oracle
	Actor        string `yaml:"actor"` // user | agent | env | condition | validation
	Dependencies []string `yaml:"dependencies"`

	// RelativeTimeSeconds is added once all Dependencies have completed
	// (or to StartTime directly when there are none).
	RelativeTimeSeconds int `yaml:"relative_time_seconds"`
	// AbsoluteTimeSeconds, when set, fixes event_time = StartTime +
	// AbsoluteTimeSeconds regardless of Dependencies (DESIGN.md Open
	// Question 1: explicit time wins).
	AbsoluteTimeSeconds *int `yaml:"absolute_time_seconds"`

	// Action fields.
	App  string         `yaml:"app"`
	Tool string         `yaml:"tool"`
	Args map[string]any `yaml:"args"`

	// ConditionCheck fields.
	Predicate          string `yaml:"predicate"`
	CheckIntervalTicks int    `yaml:"check_interval_ticks"`
	TimeoutTicks       int    `yaml:"timeout_ticks"`

	// Validation / AgentValidation fields.
	ValidatorID       string            `yaml:"validator_id"`
	Milestones        map[string]string `yaml:"milestones"`
	Minefields        map[string]string `yaml:"minefields"`
	PollIntervalTicks int               `yaml:"poll_interval_ticks"`
	DeadlineTicks     int               `yaml:"deadline_ticks"`
}

// ParseFile decodes raw YAML into a FileConfig.
func ParseFile(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if cfg.TimeIncrementInSeconds == 0 {
		cfg.TimeIncrementInSeconds = 1
	}
	return &cfg, nil
}

// Build compiles a FileConfig's declarative event graph into a Scenario
// (the caller still attaches apps and an optional CheckFn). Compile
// errors in any predicate/milestone/minefield expression are reported
// here, at load time, rather than surfacing mid-run.
func (cfg *FileConfig) Build() (*Scenario, error) {
	s := New(cfg.Name, cfg.StartTime)
	s.TimeIncrementInSeconds = cfg.TimeIncrementInSeconds
	if cfg.DurationSeconds != nil {
		d := time.Duration(*cfg.DurationSeconds) * time.Second
		s.Duration = &d
	}

	events := make([]*event.Event, 0, len(cfg.Events))
	for _, ec := range cfg.Events {
		e, err := ec.build(cfg.StartTime)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ec.ID, err)
		}
		events = append(events, e)
	}
	s.WithEvents(events...)
	return s, nil
}

func (ec *EventConfig) build(startTime time.Time) (*event.Event, error) {
	// An omitted or unrecognized actor defaults to ENV, the common case
	// for declaratively-scripted events.
	actor, err := event.ParseActor(ec.Actor)
	if err != nil {
		actor = event.ActorEnv
	}
	kind, err := event.ParseKind(ec.Kind)
	if err != nil {
		return nil, err
	}

	e := event.New(ec.ID, kind, actor)
	e.Dependencies = ec.Dependencies
	e.RelativeTime = time.Duration(ec.RelativeTimeSeconds) * time.Second
	if ec.AbsoluteTimeSeconds != nil {
		t := startTime.Add(time.Duration(*ec.AbsoluteTimeSeconds) * time.Second)
		e.Time = &t
	}

	switch kind {
	case event.KindAction, event.KindOracle:
		e.Action = &event.Action{App: ec.App, Tool: ec.Tool, RawArgs: ec.Args}

	case event.KindConditionCheck:
		pred, err := validate.Compile(ec.Predicate)
		if err != nil {
			return nil, err
		}
		e.ConditionCheck = &event.ConditionCheck{
			Predicate:          pred,
			CheckIntervalTicks: ec.CheckIntervalTicks,
			TimeoutTicks:       ec.TimeoutTicks,
		}

	case event.KindValidation:
		v, err := validate.NewScheduled(ec.Milestones, ec.Minefields, ec.PollIntervalTicks, ec.TimeoutTicks)
		if err != nil {
			return nil, err
		}
		e.Validation = &event.Validation{ValidatorID: ec.ValidatorID, Validator: v}

	case event.KindAgentValidation:
		v, err := validate.NewAgentAction(ec.ValidatorID, ec.Milestones, ec.Minefields, ec.DeadlineTicks)
		if err != nil {
			return nil, err
		}
		e.AgentValidation = &event.AgentValidation{Validator: v}
	}

	return e, nil
}

