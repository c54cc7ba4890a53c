// Package serve implements the `recall serve` command: wire the retrieval
// pipeline and expose the two memory tools over MCP stdio.
package serve

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/recall/internal/cmd/base"
	"github.com/hashicorp-forge/recall/internal/version"
	"github.com/hashicorp-forge/recall/pkg/gateway"
)

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Run the memory gateway as an MCP stdio server"
}

func (c *Command) Help() string {
	return `Usage: recall serve [-config=config.hcl]

  Starts the personal memory gateway and serves the
  query_personal_memory and save_memory tools over MCP stdio.

  Configuration comes from RECALL_* environment variables. An optional
  HCL file supplies defaults; environment variables win on conflict.
`
}

func (c *Command) Run(args []string) int {
	f := flag.NewFlagSet("serve", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "", "Path to an optional HCL configuration file")
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	env := base.Environ()
	if c.flagConfig != "" {
		if err := seedFromFile(c.flagConfig, env); err != nil {
			c.UI.Error(fmt.Sprintf("error loading config file: %v", err))
			return 1
		}
	}

	cfg, err := base.LoadConfig(env, c.Log)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	rt, err := base.NewRuntime(cfg, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error starting gateway: %v", err))
		return 1
	}
	defer rt.Close()

	c.Log.Info("serving MCP over stdio",
		"data_dir", cfg.DataDir,
		"scope", cfg.QueryScope,
		"answer_mode", cfg.AnswerMode,
	)

	srv := gateway.NewMCPServer(rt.Controller, "recall", version.Version)
	if err := gateway.ServeStdio(srv); err != nil {
		c.UI.Error(fmt.Sprintf("server error: %v", err))
		return 1
	}

	return 0
}

// fileConfig mirrors the recognized environment variables. Every attribute
// is optional; set attributes become defaults the environment can override.
type fileConfig struct {
	DataDir        *string `hcl:"data_dir,optional"`
	Port           *int    `hcl:"port,optional"`
	QueryScope     *string `hcl:"query_scope,optional"`
	StrictMatch    *bool   `hcl:"strict_match,optional"`
	TopK           *int    `hcl:"top_k,optional"`
	MaxChars       *int    `hcl:"max_chars,optional"`
	EmbedProvider  *string `hcl:"embed_provider,optional"`
	EmbedModel     *string `hcl:"embed_model,optional"`
	EmbedDimension *int    `hcl:"embed_dimension,optional"`
	PrivacyDebug   *bool   `hcl:"privacy_debug,optional"`
	ConsentTTLMs   *int    `hcl:"consent_ttl_ms,optional"`
	ConsentEnabled *bool   `hcl:"consent_enabled,optional"`
	AnswerMode     *string `hcl:"answer_mode,optional"`
	GroundingMode  *string `hcl:"grounding_mode,optional"`
	Provider       *string `hcl:"provider,optional"`
	BaseURL        *string `hcl:"base_url,optional"`
	ProfileID      *string `hcl:"profile_id,optional"`
	Model          *string `hcl:"model,optional"`
	BusCapacity    *int    `hcl:"bus_capacity,optional"`
}

// seedFromFile decodes the HCL file and writes its values into env under the
// RECALL_ prefix, skipping keys the environment already sets.
func seedFromFile(path string, env map[string]string) error {
	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return err
	}

	seed := func(key string, value string) {
		envKey := "RECALL_" + key
		if _, ok := env[envKey]; !ok {
			env[envKey] = value
		}
	}
	seedStr := func(key string, v *string) {
		if v != nil {
			seed(key, *v)
		}
	}
	seedInt := func(key string, v *int) {
		if v != nil {
			seed(key, strconv.Itoa(*v))
		}
	}
	seedBool := func(key string, v *bool) {
		if v != nil {
			seed(key, strconv.FormatBool(*v))
		}
	}

	seedStr("DATA_DIR", fc.DataDir)
	seedInt("PORT", fc.Port)
	seedStr("QUERY_SCOPE", fc.QueryScope)
	seedBool("STRICT_MATCH", fc.StrictMatch)
	seedInt("TOP_K", fc.TopK)
	seedInt("MAX_CHARS", fc.MaxChars)
	seedStr("EMBED_PROVIDER", fc.EmbedProvider)
	seedStr("EMBED_MODEL", fc.EmbedModel)
	seedInt("EMBED_DIMENSION", fc.EmbedDimension)
	seedBool("PRIVACY_DEBUG", fc.PrivacyDebug)
	seedInt("CONSENT_TTL_MS", fc.ConsentTTLMs)
	seedBool("CONSENT_ENABLED", fc.ConsentEnabled)
	seedStr("ANSWER_MODE", fc.AnswerMode)
	seedStr("GROUNDING_MODE", fc.GroundingMode)
	seedStr("PROVIDER", fc.Provider)
	seedStr("BASE_URL", fc.BaseURL)
	seedStr("PROFILE_ID", fc.ProfileID)
	seedStr("MODEL", fc.Model)
	seedInt("BUS_CAPACITY", fc.BusCapacity)

	return nil
}
