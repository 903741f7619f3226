package menu

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML keeps option groups in file order, which the goal
// generator relies on for conditional requirements.
func (d *ItemDef) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ItemName string    `yaml:"itemName"`
		Options  yaml.Node `yaml:"options"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.Name = raw.ItemName
	d.Options = nil

	switch raw.Options.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: options of %q must be a mapping", raw.Options.Line, raw.ItemName)
	}

	content := raw.Options.Content
	for i := 0; i+1 < len(content); i += 2 {
		var opt OptionDef
		if err := content[i+1].Decode(&opt); err != nil {
			return fmt.Errorf("option %q of %q: %w", content[i].Value, raw.ItemName, err)
		}
		opt.Name = content[i].Value
		d.Options = append(d.Options, opt)
	}
	return nil
}

// UnmarshalYAML accepts required as a bool or a {option, value} rule and
// choices as a list or a mapping keyed by label.
func (o *OptionDef) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Required      yaml.Node `yaml:"required"`
		Choices       yaml.Node `yaml:"choices"`
		Minimum       *int      `yaml:"minimum"`
		Maximum       *int      `yaml:"maximum"`
		DefaultChoice string    `yaml:"defaultChoice"`
		Modifiers     []string  `yaml:"modifiers"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*o = OptionDef{
		Minimum:       1,
		Maximum:       1,
		DefaultChoice: raw.DefaultChoice,
		Modifiers:     raw.Modifiers,
	}
	if raw.Minimum != nil {
		o.Minimum = *raw.Minimum
	}
	if raw.Maximum != nil {
		o.Maximum = *raw.Maximum
	}

	switch raw.Required.Kind {
	case 0:
	case yaml.ScalarNode:
		if err := raw.Required.Decode(&o.Required); err != nil {
			return fmt.Errorf("required: %w", err)
		}
	case yaml.MappingNode:
		var cond Condition
		if err := raw.Required.Decode(&cond); err != nil {
			return fmt.Errorf("required: %w", err)
		}
		o.Condition = &cond
	default:
		return fmt.Errorf("line %d: required must be a bool or a condition", raw.Required.Line)
	}

	switch raw.Choices.Kind {
	case 0:
	case yaml.SequenceNode:
		if err := raw.Choices.Decode(&o.Choices); err != nil {
			return fmt.Errorf("choices: %w", err)
		}
	case yaml.MappingNode:
		for i := 0; i < len(raw.Choices.Content); i += 2 {
			o.Choices = append(o.Choices, raw.Choices.Content[i].Value)
		}
	default:
		return fmt.Errorf("line %d: choices must be a list or a mapping", raw.Choices.Line)
	}

	return nil
}
