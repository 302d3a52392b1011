package exchange

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Draft07 is what the schemas declare, so that validators limited to older
// drafts can load them.
const Draft07 = "http://json-schema.org/draft-07/schema#"

func reflectSchema(v interface{}) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Anonymous:                 true,
	}
	s := r.Reflect(v)
	s.Version = Draft07
	return s
}

// RequestSchema describes the body the answering service accepts.
func RequestSchema() *jsonschema.Schema {
	s := reflectSchema(&Request{})
	s.Title = "ExchangeRequest"
	s.Description = "One user utterance plus the conversation history that preceded it."
	return s
}

func ResponseSchema() *jsonschema.Schema {
	s := reflectSchema(&Response{})
	s.Title = "ExchangeResponse"
	return s
}

func MarshalSchema(s *jsonschema.Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
