package routing

import (
	"strings"

	"github.com/joho/godotenv"

	"message-router/internal/common/errors"
)

// LoadVariables builds the variables bound into route scripts. location names
// a properties file in KEY=value form; inline holds the same format, one pair
// per line (a literal "\n" also separates pairs). Inline values override the file.
func LoadVariables(inline, location string) (map[string]string, error) {
	variables := make(map[string]string)

	if location != "" {
		path, err := localPath(location)
		if err != nil {
			return nil, err
		}
		fromFile, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.ConfigError("failed to read script variables from " + location + ": " + err.Error())
		}
		for k, v := range fromFile {
			variables[k] = v
		}
	}

	if strings.TrimSpace(inline) != "" {
		fromInline, err := godotenv.Unmarshal(strings.ReplaceAll(inline, `\n`, "\n"))
		if err != nil {
			return nil, errors.ConfigError("invalid inline script variables: " + err.Error())
		}
		for k, v := range fromInline {
			variables[k] = v
		}
	}

	return variables, nil
}

// localPath accepts a plain path or a file: location. Any other scheme is
// rejected; single letters are drive names, not schemes.
func localPath(location string) (string, error) {
	scheme, rest, found := strings.Cut(location, ":")
	if !found || len(scheme) < 2 || strings.ContainsAny(scheme, `/\.`) {
		return location, nil
	}
	if scheme != "file" {
		return "", errors.ConfigError("unsupported location " + location + ": only file paths and file: locations are supported")
	}
	return rest, nil
}
