package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"guardrag/internal/config"
	"guardrag/internal/embedding"
	"guardrag/internal/index"
	"guardrag/internal/intent"
	"guardrag/internal/llm"
	"guardrag/internal/logging"
	"guardrag/internal/pipeline"
	"guardrag/internal/retrieval"
	"guardrag/internal/risk"
	"guardrag/internal/session"
	"guardrag/internal/synthesis"
)

var (
	askSessionID string
	askUserID    string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Run a query through the full pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.CloseAll()

		orch, cleanup, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result := orch.Process(context.Background(), args[0], askSessionID, askUserID)

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Println(result.Response)
		fmt.Println()
		fmt.Printf("state: %s  session: %s\n", result.State, result.SessionID)
		fmt.Printf("intent: %s (%.2f, %s)\n", result.Intent.Intent, result.Intent.Confidence, result.Intent.Method)
		fmt.Printf("risk: %s score=%.2f decision=%s\n", result.Risk.RiskLevel, result.Risk.RiskScore, result.Risk.Decision)
		fmt.Printf("retrieval: %d documents confidence=%.2f\n", len(result.Retrieval.Documents), result.Retrieval.Confidence)
		fmt.Printf("quality: %.2f (%s)\n", result.Synthesis.Quality.Overall, result.Synthesis.Strategy)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session id (blank mints a new one)")
	askCmd.Flags().StringVar(&askUserID, "user", "", "user id for document visibility filtering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result envelope as JSON")
}

// buildPipeline wires the full stack from configuration. The returned cleanup
// closes the index.
func buildPipeline(cfg *config.Config) (*pipeline.Orchestrator, func(), error) {
	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.BaseURL,
		OllamaModel:    cfg.Embedding.Model,
		GeminiAPIKey:   cfg.Embedding.APIKey,
		GeminiModel:    cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding engine: %w", err)
	}

	client, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating llm client: %w", err)
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, nil, err
	}

	retriever := retrieval.NewEngine(embedder, idx)
	orch := pipeline.New(
		intent.NewClassifier(intent.DefaultCatalog(), client),
		risk.NewScorer(risk.DefaultRuleset(), retriever),
		retriever,
		synthesis.NewSynthesizer(client, synthesis.NewEvaluator(embedder)),
		session.NewStore(cfg.Pipeline.SessionHistorySize, cfg.GetSessionTTL()),
		pipeline.Options{
			RetrievalResults: cfg.Pipeline.RetrievalResults,
			GuidanceResults:  cfg.Pipeline.GuidanceResults,
		},
	)
	cleanup := func() {
		if err := idx.Close(); err != nil {
			logging.Boot("closing index: %v", err)
		}
	}
	return orch, cleanup, nil
}

func openIndex(cfg *config.Config) (index.Index, error) {
	switch cfg.Index.Backend {
	case "memory":
		return index.NewMemoryIndex(), nil
	default:
		idx, err := index.NewSQLiteIndex(cfg.Index.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", cfg.Index.DatabasePath, err)
		}
		return idx, nil
	}
}
