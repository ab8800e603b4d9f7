package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nao1215/pharmacrawl/internal/model"
)

// Environment variables read by LoadCredentials.
const (
	// EnvJinaAPIKey holds the content-retrieval service key.
	EnvJinaAPIKey = "JINA_API_KEY"

	// EnvOpenRouterAPIKey holds the language-model gateway key.
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"

	// EnvFile names a single .env file to use instead of .env.local and .env.
	EnvFile = "ENV_FILE"
)

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadCredentials reads the API keys from the process environment, falling
// back to .env files in the current directory.
func LoadCredentials() (model.Credentials, error) {
	return LoadCredentialsFrom(".", os.LookupEnv)
}

// LoadCredentialsFrom resolves the API keys with this precedence:
//
//  1. the environment, through lookup
//  2. the file named by ENV_FILE, if set (then steps 3 and 4 are skipped)
//  3. dir/.env.local
//  4. dir/.env
//
// Files are parsed with godotenv and never modify the process environment.
// Missing files are ignored. Both keys must resolve to non-empty values,
// otherwise ErrMissingCredential names the missing variables.
func LoadCredentialsFrom(dir string, lookup LookupFunc) (model.Credentials, error) {
	fileEnv, err := readEnvFiles(dir, lookup)
	if err != nil {
		return model.Credentials{}, err
	}

	resolve := func(key string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fileEnv[key]
	}

	creds := model.NewCredentials(resolve(EnvJinaAPIKey), resolve(EnvOpenRouterAPIKey))
	if missing := creds.Missing(); len(missing) > 0 {
		return model.Credentials{}, fmt.Errorf("%w: set %s in the environment or a .env file",
			ErrMissingCredential, strings.Join(missing, " and "))
	}
	return creds, nil
}

// readEnvFiles merges the .env files, higher priority files winning.
func readEnvFiles(dir string, lookup LookupFunc) (map[string]string, error) {
	if envFile, ok := lookup(EnvFile); ok && envFile != "" {
		if !filepath.IsAbs(envFile) {
			envFile = filepath.Join(dir, envFile)
		}
		return readEnvFile(envFile)
	}

	merged := map[string]string{}
	// Lowest priority first so later files override.
	for _, name := range []string{".env", ".env.local"} {
		values, err := readEnvFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return merged, nil
}

// readEnvFile parses one .env file. A missing file yields no values.
func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return values, nil
}
