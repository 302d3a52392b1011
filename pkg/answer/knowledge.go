package answer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Knowledge is the shop data the assistant answers factual questions from:
// orders, policies, products. Its shape is free-form.
type Knowledge map[string]interface{}

// LoadKnowledge reads the knowledge base at path. A missing or unreadable
// file is logged and yields an empty knowledge base so the service can still
// answer conversational questions.
func LoadKnowledge(path string) Knowledge {
	if path == "" {
		return Knowledge{}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not read knowledge base")
		return Knowledge{}
	}

	k, err := ParseKnowledge(FormatFromPath(path), b)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("knowledge base is not valid")
		return Knowledge{}
	}

	log.Info().Str("path", path).Int("keys", len(k)).Msg("loaded knowledge base")
	return k
}

func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func ParseKnowledge(format string, b []byte) (Knowledge, error) {
	k := Knowledge{}
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(b, &k)
	case "toml":
		err = toml.Unmarshal(b, &k)
	case "json":
		err = json.Unmarshal(b, &k)
	default:
		return nil, errors.Errorf("unknown knowledge format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %s knowledge", format)
	}
	if k == nil {
		k = Knowledge{}
	}
	for key, v := range k {
		k[key] = normalizeKeys(v)
	}
	return k, nil
}

// normalizeKeys turns yaml mappings with non-string keys (numeric order
// IDs, say) into string-keyed maps so the knowledge base stays JSON-encodable.
func normalizeKeys(v interface{}) interface{} {
	switch v_ := v.(type) {
	case map[interface{}]interface{}:
		ret := make(map[string]interface{}, len(v_))
		for key, value := range v_ {
			ret[fmt.Sprint(key)] = normalizeKeys(value)
		}
		return ret
	case map[string]interface{}:
		for key, value := range v_ {
			v_[key] = normalizeKeys(value)
		}
		return v_
	case []interface{}:
		for i, value := range v_ {
			v_[i] = normalizeKeys(value)
		}
		return v_
	}
	return v
}
