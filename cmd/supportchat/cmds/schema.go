package cmds

import (
	"fmt"

	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [request|response]",
		Short:     "Print the JSON schema of the chat wire format",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"request", "response"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "request"
			if len(args) > 0 {
				which = args[0]
			}

			var s *jsonschema.Schema
			switch which {
			case "request":
				s = exchange.RequestSchema()
			case "response":
				s = exchange.ResponseSchema()
			default:
				return errors.Errorf("unknown schema %q, expected request or response", which)
			}

			b, err := exchange.MarshalSchema(s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
