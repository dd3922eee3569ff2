package classifier

import (
	"fmt"
	"strings"
)

// New creates a classifier based on configuration
func New(config Config) (Classifier, error) {
	switch strings.ToLower(config.Provider) {
	case "luis", "":
		return NewLUISClassifier(config)

	case "openai":
		return NewOpenAIClassifier(config)

	case "ollama":
		return NewOllamaClassifier(config)

	default:
		return nil, fmt.Errorf("unknown classifier provider: %s (supported: luis, openai, ollama)", config.Provider)
	}
}
