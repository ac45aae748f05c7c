package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON on stdout. Transcript text routinely
// contains '<', '>' and '&', so HTML escaping is off to keep it readable.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
