package cmds

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/supportchat/pkg/answer"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the answering service",
		Long: "Serves POST /chat, answering each utterance from the shop knowledge base " +
			"with the configured model backend.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	defaults := answer.NewSettings()
	cmd.Flags().Int("port", defaults.Port, "Port to listen on")
	cmd.Flags().String("knowledge", defaults.KnowledgePath, "Knowledge base file (json, yaml or toml)")
	cmd.Flags().String("answerer", defaults.Answerer, "Answer backend (echo, openai, ollama)")
	cmd.Flags().String("model", defaults.Model, "Model name")
	cmd.Flags().String("openai-base-url", defaults.OpenAIBaseURL, "Base URL of the OpenAI-compatible API")
	cmd.Flags().String("openai-api-key", "", "API key (defaults to $GEMINI_API_KEY or $OPENAI_API_KEY)")
	cmd.Flags().String("system-prompt", "", "System prompt template file (default: built-in)")
	cmd.Flags().String("shop-name", defaults.ShopName, "Shop name used in the system prompt")
	cmd.Flags().String("shop-url", defaults.ShopURL, "Shop URL used in the system prompt")
	cmd.Flags().String("shop-location", defaults.ShopLocation, "Shop location used in the system prompt")
	cmd.Flags().Int("max-prompt-tokens", 0, "Drop the oldest history to fit this many tokens (0 keeps everything)")
	cmd.Flags().Bool("allow-local-backend", false, "Allow an http or local-network --openai-base-url")
	cmd.Flags().StringSlice("env-file", []string{".env"}, "Dotenv files to load before reading settings")

	return cmd
}

func settingsFromViper() *answer.Settings {
	s := answer.NewSettings()
	s.Port = viper.GetInt("port")
	s.KnowledgePath = viper.GetString("knowledge")
	s.Answerer = viper.GetString("answerer")
	s.Model = viper.GetString("model")
	s.OpenAIBaseURL = viper.GetString("openai-base-url")
	s.OpenAIAPIKey = viper.GetString("openai-api-key")
	s.SystemPromptPath = viper.GetString("system-prompt")
	s.ShopName = viper.GetString("shop-name")
	s.ShopURL = viper.GetString("shop-url")
	s.ShopLocation = viper.GetString("shop-location")
	s.MaxPromptTokens = viper.GetInt("max-prompt-tokens")
	s.AllowLocalBackend = viper.GetBool("allow-local-backend")

	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	return s
}

// loadEnvFiles loads every dotenv file that exists. Variables already set in
// the environment win.
func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "could not stat %s", path)
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "could not load %s", path)
		}
		log.Debug().Str("path", path).Msg("loaded env file")
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := loadEnvFiles(viper.GetStringSlice("env-file")); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return answer.Start(ctx, answer.StartOpts{
		Settings: settingsFromViper(),
		Out:      cmd.OutOrStdout(),
	})
}
