package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"nursemate/internal/config"
)

const (
	defaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModel   = "doubao-seed-1-6-flash-250615"
)

// NewChatModel 按 provider 创建 ChatModel
// openai 也用于任何 OpenAI 兼容端点（如 Gemini 的兼容接口），通过 base_url 指定
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		return openai.NewChatModel(ctx, openAIConfig(cfg, false))
	case "azure":
		return openai.NewChatModel(ctx, openAIConfig(cfg, true))
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

func openAIConfig(cfg *config.AIConfig, azure bool) *openai.ChatModelConfig {
	modelCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		ByAzure: azure,
	}
	modelCfg.Temperature, modelCfg.TopP, modelCfg.MaxTokens = options(&cfg.Options)
	return modelCfg
}

func newArkChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error) {
	modelCfg := &arkext.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	}
	if modelCfg.BaseURL == "" {
		modelCfg.BaseURL = defaultArkBaseURL
	}
	if modelCfg.Model == "" {
		modelCfg.Model = defaultArkModel
	}
	modelCfg.Temperature, modelCfg.TopP, modelCfg.MaxTokens = options(&cfg.Options)
	return arkext.NewChatModel(ctx, modelCfg)
}

// options 零值表示使用服务端默认
func options(o *config.AIOptionsConfig) (temperature, topP *float32, maxTokens *int) {
	if o.Temperature > 0 {
		t := float32(o.Temperature)
		temperature = &t
	}
	if o.TopP > 0 {
		p := float32(o.TopP)
		topP = &p
	}
	if o.MaxTokens > 0 {
		n := o.MaxTokens
		maxTokens = &n
	}
	return temperature, topP, maxTokens
}
