package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
)

// CredentialEnvVar names the environment variable carrying the OpenRouter
// bearer credential. It is the only place credentials are read from.
const CredentialEnvVar = "OPENROUTER_API_KEY"

// LookupFunc mirrors os.LookupEnv so tests can inject an environment.
type LookupFunc func(key string) (string, bool)

// Credential resolves the API credential from the process environment.
// Absence is a fatal configuration error raised before any run work starts.
// A nil lookup uses os.LookupEnv.
func Credential(lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(CredentialEnvVar)
	if !ok || strings.TrimSpace(value) == "" {
		return "", cbterrors.NewConfigurationError(CredentialEnvVar,
			fmt.Errorf("missing env variable: %s", CredentialEnvVar))
	}
	return strings.TrimSpace(value), nil
}

// LoadDotEnv loads a .env file into the process environment when one exists.
// A missing file is not an error; variables already set win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load()
}
