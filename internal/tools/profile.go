package tools

import (
	"context"
	"fmt"

	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
)

// ProfileToolName is the name models use to request profile data.
const ProfileToolName = "get_profile_data"

// ProfileTool exposes profile lookup as a tool. Each call fetches a fresh
// document from src. Fetch failures are reported in the payload, not as errors.
func ProfileTool(r *resolver.Resolver, src profile.Source) Tool {
	return Tool{
		Name: ProfileToolName,
		Description: fmt.Sprintf(
			"Look up information about %s (name, title, skills, projects, experience, education, languages, certifications, contact and social links). Pass the user's question or topic as the query; typos are tolerated.",
			r.Subject()),
		Params: []Param{
			{Name: "query", Description: "The topic or question to look up", Required: true},
		},
		Handler: func(ctx context.Context, args Args) (any, error) {
			q, _ := args.String("query")
			return r.Lookup(ctx, src, q).Payload(), nil
		},
	}
}
