package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	openrouterx "github.com/tanpawarit/drivethru-sim/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"300"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	JudgeModel           string  `envconfig:"JUDGE_MODEL" split_words:"true"`
	PlannerModel         string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	GeneratorModel       string  `envconfig:"GENERATOR_MODEL" split_words:"true"`
	ExtractorModel       string  `envconfig:"EXTRACTOR_MODEL" split_words:"true"`
	GeneratorTemperature float32 `envconfig:"GENERATOR_TEMPERATURE" split_words:"true" default:"0.7"`
	GeneratorPresence    float32 `envconfig:"GENERATOR_PRESENCE_PENALTY" split_words:"true" default:"-0.1"`
	GeneratorFrequency   float32 `envconfig:"GENERATOR_FREQUENCY_PENALTY" split_words:"true" default:"0.1"`
	JudgeMaxTokens       int     `envconfig:"JUDGE_MAX_TOKENS" split_words:"true" default:"10"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the provider settings for one oracle role.
// Yes/no and state answers run at temperature 0 with a short token cap.
func (c Config) OpenRouterFor(role contractx.Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature
	maxTokens := c.MaxCompletionToken
	var presence, frequency float32

	switch role {
	case contractx.RoleJudge:
		if v := strings.TrimSpace(c.JudgeModel); v != "" {
			modelName = v
		}
		temp = 0
		if c.JudgeMaxTokens > 0 {
			maxTokens = c.JudgeMaxTokens
		}
	case contractx.RolePlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			modelName = v
		}
		temp = 0
		if c.JudgeMaxTokens > 0 {
			maxTokens = c.JudgeMaxTokens
		}
	case contractx.RoleGenerator:
		if v := strings.TrimSpace(c.GeneratorModel); v != "" {
			modelName = v
		}
		temp = c.GeneratorTemperature
		presence = c.GeneratorPresence
		frequency = c.GeneratorFrequency
	case contractx.RoleExtractor:
		if v := strings.TrimSpace(c.ExtractorModel); v != "" {
			modelName = v
		}
		temp = 0
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxTokens,
		Temperature:        temp,
		PresencePenalty:    presence,
		FrequencyPenalty:   frequency,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
