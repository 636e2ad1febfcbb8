// Package policy is the declarative approval criteria: an ordered list
// of threshold predicates over evaluation metrics.
//
// The policy is data, not code. It is loaded from YAML at run time so
// that operators tune thresholds without redeploying the pipeline.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Comparator string

const (
	GreaterEq Comparator = ">="
	Greater   Comparator = ">"
	LessEq    Comparator = "<="
	Less      Comparator = "<"
	Equal     Comparator = "=="
)

func AsComparator(op string) (Comparator, error) {
	switch op {
	case string(GreaterEq):
		return GreaterEq, nil
	case string(Greater):
		return Greater, nil
	case string(LessEq):
		return LessEq, nil
	case string(Less):
		return Less, nil
	case string(Equal):
		return Equal, nil
	default:
		return "", fmt.Errorf("'%s' is not a comparator", op)
	}
}

func (c Comparator) String() string {
	return string(c)
}

func (c Comparator) holds(value, threshold float64) bool {
	switch c {
	case GreaterEq:
		return value >= threshold
	case Greater:
		return value > threshold
	case LessEq:
		return value <= threshold
	case Less:
		return value < threshold
	case Equal:
		return value == threshold
	default:
		return false
	}
}

// violated renders the relation which actually held when c did not.
func (c Comparator) violated() string {
	switch c {
	case GreaterEq:
		return string(Less)
	case Greater:
		return string(LessEq)
	case LessEq:
		return string(Greater)
	case Less:
		return string(GreaterEq)
	case Equal:
		return "!="
	default:
		return "?"
	}
}

type Rule struct {
	Metric    string     `yaml:"metric"`
	Op        Comparator `yaml:"op"`
	Threshold float64    `yaml:"threshold"`
}

func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	raw := new(struct {
		Metric    *string  `yaml:"metric"`
		Op        *string  `yaml:"op"`
		Threshold *float64 `yaml:"threshold"`
	})
	if err := node.Decode(raw); err != nil {
		return err
	}
	if raw.Metric == nil || *raw.Metric == "" {
		return fmt.Errorf("rule without metric (line %d)", node.Line)
	}
	if raw.Op == nil {
		return fmt.Errorf("rule %s without op (line %d)", *raw.Metric, node.Line)
	}
	op, err := AsComparator(*raw.Op)
	if err != nil {
		return fmt.Errorf("rule %s: %w (line %d)", *raw.Metric, err, node.Line)
	}
	if raw.Threshold == nil {
		return fmt.Errorf("rule %s without threshold (line %d)", *raw.Metric, node.Line)
	}

	r.Metric, r.Op, r.Threshold = *raw.Metric, op, *raw.Threshold
	return nil
}

// Policy approves a metrics record when ALL of its rules hold,
// checked in declared order.
type Policy struct {
	Rules []Rule `yaml:"rules"`
}

func Load(filepath string) (Policy, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return Policy{}, err
	}
	return Unmarshal(content)
}

func Unmarshal(content []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(content, &p); err != nil {
		return Policy{}, err
	}
	if len(p.Rules) == 0 {
		return Policy{}, fmt.Errorf("policy has no rules; refusing to approve everything")
	}
	return p, nil
}

// Reason describes the first failing predicate, precisely enough to
// drive automated alerting.
type Reason struct {
	Metric     string     `json:"metric"`
	Comparator Comparator `json:"comparator"`
	Threshold  float64    `json:"threshold"`

	// Value is the observed metric. Meaningless when Missing.
	Value float64 `json:"value"`

	// Missing marks a rule whose metric is absent from the record.
	// An absent metric fails the rule; it is never a silent pass.
	Missing bool `json:"missing,omitempty"`
}

func (r Reason) String() string {
	if r.Missing {
		return fmt.Sprintf(
			"%s missing (policy requires %s %s %.2f)",
			r.Metric, r.Metric, r.Comparator, r.Threshold,
		)
	}
	return fmt.Sprintf(
		"%s %.2f %s %.2f",
		r.Metric, r.Value, r.Comparator.violated(), r.Threshold,
	)
}

type Verdict struct {
	Approved bool `json:"approved"`

	// Reason is set iff not approved.
	Reason *Reason `json:"reason,omitempty"`
}

// Evaluate checks rules in order and short-circuits on the first failure.
func (p Policy) Evaluate(values map[string]float64) Verdict {
	for _, rule := range p.Rules {
		value, ok := values[rule.Metric]
		if !ok {
			return Verdict{Reason: &Reason{
				Metric:     rule.Metric,
				Comparator: rule.Op,
				Threshold:  rule.Threshold,
				Missing:    true,
			}}
		}
		if !rule.Op.holds(value, rule.Threshold) {
			return Verdict{Reason: &Reason{
				Metric:     rule.Metric,
				Comparator: rule.Op,
				Threshold:  rule.Threshold,
				Value:      value,
			}}
		}
	}
	return Verdict{Approved: true}
}
