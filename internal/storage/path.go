package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// URIScheme marks dataset sources that live in the object store.
const URIScheme = "s3://"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ParseObjectURI reports whether raw names an object ("s3://datasets/X-Wines.csv")
// and returns its validated key.
func ParseObjectURI(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, URIScheme) {
		return "", false, nil
	}
	key := strings.TrimPrefix(raw, URIScheme)
	if err := ValidateKey(key); err != nil {
		return "", true, err
	}
	return key, true, nil
}

// ValidateKey requires every slash-separated component to be a plain file name.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	for _, component := range strings.Split(key, "/") {
		if err := validatePathComponent(component, "key component"); err != nil {
			return err
		}
	}
	return nil
}

// DatasetKey builds the key a local dataset file is published under.
func DatasetKey(dir, localPath string) (string, error) {
	name := path.Base(strings.ReplaceAll(localPath, `\`, "/"))
	if err := validatePathComponent(name, "file name"); err != nil {
		return "", err
	}
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return name, nil
	}
	key := path.Join(dir, name)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
