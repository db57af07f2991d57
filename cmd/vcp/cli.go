package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/vcp/internal/accel"
	"github.com/hpungsan/vcp/internal/audit"
	"github.com/hpungsan/vcp/internal/config"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/store"
	"github.com/hpungsan/vcp/internal/vcp"
	"github.com/hpungsan/vcp/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(st *store.Store, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "vcp",
		Usage:   "Portable personal context, governed by you",
		Version: Version,
		Commands: []*cli.Command{
			initCmd(st, cfg),
			showCmd(st),
			setCmd(st, cfg),
			mergeCmd(st, cfg),
			stateCmd(st),
			tokenCmd(st, cfg),
			codeCmd(),
			previewCmd(st),
			filterCmd(st),
			consentCmd(st),
			constitutionsCmd(),
			resolveCmd(st),
			intentCmd(st),
			transitionCmd(st, cfg),
			promptCmd(st),
			auditCmd(st),
			scheduleCmd(),
			webCmd(st, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// initCmd creates the init command.
func initCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a new context",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Profile ID (generated if omitted)"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
			&cli.StringFlag{Name: "goal", Aliases: []string{"g"}, Usage: "Current goal"},
			&cli.StringFlag{Name: "experience", Aliases: []string{"e"}, Usage: "Experience level"},
		},
		Action: func(c *cli.Context) error {
			if profileID := c.String("profile"); profileID != "" {
				if _, err := st.GetContext(profileID); err == nil {
					return outputError(errors.NewConflict(fmt.Sprintf("profile %q already exists", profileID)))
				}
			}

			now := clock()
			ctx := vcp.NewContext(vcp.NewContextOptions{
				ProfileID:   c.String("profile"),
				DisplayName: c.String("name"),
				Goal:        c.String("goal"),
				Experience:  c.String("experience"),
			}, now)

			if err := checkContextSize(cfg, ctx); err != nil {
				return outputError(err)
			}
			if err := st.SaveContext(ctx, now); err != nil {
				return outputError(err)
			}

			return outputJSON(ctx)
		},
	}
}

// showCmd creates the show command.
func showCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a stored context",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "effective", Usage: "Include decayed personal state"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			if !c.Bool("effective") {
				return outputJSON(ctx)
			}
			return outputJSON(map[string]any{
				"context":         ctx,
				"effective_state": vcp.EffectiveState(ctx.PersonalState, clock()),
			})
		},
	}
}

// setCmd creates the set command.
func setCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Replace one context section (reads the value from stdin or --value)",
		ArgsUsage: "<profile> <section>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "value", Usage: "Section value as JSON (alternative to stdin)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("profile and section arguments are required"))
			}
			profileID := c.Args().Get(0)
			section := c.Args().Get(1)

			raw := c.String("value")
			if raw == "" && stdinHasData() {
				raw, _ = readStdin()
			}
			if raw == "" {
				return outputError(errors.NewInvalidRequest("value must be piped via stdin or passed with --value"))
			}

			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				// Bare strings are accepted without quoting
				value = raw
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			now := clock()
			updated, err := vcp.UpdateField(ctx, section, value, now)
			if err != nil {
				return outputError(err)
			}
			if err := checkContextSize(cfg, updated); err != nil {
				return outputError(err)
			}
			if err := st.SaveContext(updated, now); err != nil {
				return outputError(err)
			}

			return outputJSON(updated)
		},
	}
}

// mergeCmd creates the merge command.
func mergeCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Deep-merge a partial context (reads the patch from stdin)",
		ArgsUsage: "<profile>",
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("patch must be piped via stdin"))
			}
			raw, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if raw == "" {
				return outputError(errors.NewInvalidRequest("patch is required"))
			}

			var patch vcp.Context
			if err := json.Unmarshal([]byte(raw), &patch); err != nil {
				return outputError(errors.NewInvalidRequest("patch must be a partial context object"))
			}

			now := clock()

			// Merging onto an unknown profile creates it
			ctx, err := st.GetContext(profileID)
			if err != nil {
				if !errors.Is(err, errors.ErrNotFound) {
					return outputError(err)
				}
				ctx = vcp.NewContext(vcp.NewContextOptions{ProfileID: profileID}, now)
			}

			merged := vcp.Merge(ctx, &patch, now)
			if err := checkContextSize(cfg, merged); err != nil {
				return outputError(err)
			}
			if err := st.SaveContext(merged, now); err != nil {
				return outputError(err)
			}

			return outputJSON(merged)
		},
	}
}

// stateCmd creates the state command.
func stateCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "state",
		Usage:     "Show effective personal state after decay",
		ArgsUsage: "<profile>",
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"profile_id":      profileID,
				"effective_state": vcp.EffectiveState(ctx.PersonalState, clock()),
			})
		},
	}
}

// tokenCmd creates the token command.
func tokenCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Encode a context as a CSM-1 token",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "display", Aliases: []string{"d"}, Usage: "Include the human-readable rendering"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			now := clock()
			lines := accel.Encode(cfg.AccelCodecPath, ctx, now)

			result := map[string]any{
				"lines":   lines,
				"wire":    vcp.WireFormat(lines),
				"summary": vcp.SummarizeTransmission(ctx, now),
			}
			if c.Bool("display") {
				result["display"] = vcp.FormatTokenForDisplay(lines)
			}
			return outputJSON(result)
		},
	}
}

// codeCmd creates the code command.
func codeCmd() *cli.Command {
	return &cli.Command{
		Name:      "code",
		Usage:     "Show the compact code for a constitution",
		ArgsUsage: "<constitution-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("constitution-id argument is required"))
			}
			id := c.Args().First()
			return outputJSON(map[string]any{
				"constitution_id": id,
				"code":            vcp.ConstitutionCodeByID(id),
			})
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Preview what a platform would receive, without sharing",
		ArgsUsage: "<profile>",
		Flags:     platformFlags(),
		Action: func(c *cli.Context) error {
			profileID, manifest, err := platformArgs(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			consent, _ := st.GetConsent(manifest.PlatformID)
			return outputJSON(vcp.SharePreview(ctx, manifest, consent))
		},
	}
}

// filterCmd creates the filter command.
func filterCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "filter",
		Usage:     "Produce a consent-gated projection for a platform",
		ArgsUsage: "<profile>",
		Flags:     platformFlags(),
		Action: func(c *cli.Context) error {
			profileID, manifest, err := platformArgs(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			consent, _ := st.GetConsent(manifest.PlatformID)
			filtered, err := vcp.FilterForPlatform(ctx, manifest, consent)
			if err != nil {
				return outputError(err)
			}

			st.AppendAudit(profileID, audit.ShareLogged(
				manifest.PlatformID,
				vcp.SharedFieldNames(filtered),
				vcp.WithheldFieldNames(ctx),
				vcp.InferredConstraintCount(ctx),
				clock(),
			))

			return outputJSON(filtered)
		},
	}
}

// consentCmd creates the consent command.
func consentCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "consent",
		Usage:     "Grant or revoke a platform's standing consent",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Required: true, Usage: "Platform ID"},
			&cli.BoolFlag{Name: "revoke", Usage: "Revoke instead of grant"},
			&cli.StringFlag{Name: "required", Usage: "Comma-separated required fields"},
			&cli.StringFlag{Name: "share", Usage: "Comma-separated optional fields to share"},
			&cli.StringFlag{Name: "hide", Usage: "Comma-separated optional fields to hide"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}
			platformID := c.String("platform")

			now := clock()
			if c.Bool("revoke") {
				st.RevokeConsent(platformID)
				st.AppendAudit(profileID, audit.ConsentLogged(platformID, false, nil, now))
				return outputJSON(map[string]any{"platform_id": platformID, "granted": false})
			}

			record := &vcp.ConsentRecord{
				PlatformID:     platformID,
				Granted:        true,
				RequiredFields: parseFields(c.String("required")),
				OptionalShare:  parseFields(c.String("share")),
				OptionalHide:   parseFields(c.String("hide")),
				GrantedAt:      vcp.Timestamp(now),
			}
			if err := st.GrantConsent(record, now); err != nil {
				return outputError(err)
			}
			st.AppendAudit(profileID, audit.ConsentLogged(platformID, true, record.RequiredFields, now))

			return outputJSON(record)
		},
	}
}

// constitutionsCmd creates the constitutions command.
func constitutionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "constitutions",
		Usage: "List the constitution catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Usage: "Filter by scope (e.g. creativity, health, work, privacy)"},
		},
		Action: func(c *cli.Context) error {
			var items []vcp.Constitution
			if scope := c.String("scope"); scope != "" {
				items = vcp.ConstitutionsForScope(vcp.Scope(scope))
			} else {
				items = vcp.Constitutions()
			}

			out := make([]map[string]any, 0, len(items))
			for i := range items {
				out = append(out, map[string]any{
					"constitution": items[i],
					"code":         vcp.ConstitutionCode(&items[i]),
				})
			}
			return outputJSON(map[string]any{"constitutions": out})
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve constitution rules against current constraints",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "constitution", Usage: "Constitution ID (defaults to the profile's own)"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			constitutionID := c.String("constitution")
			if constitutionID == "" {
				constitutionID = ctx.Constitution.ID
			}
			constitution, ok := vcp.ConstitutionByID(constitutionID)
			if !ok {
				return outputError(errors.NewNotFound(constitutionID))
			}

			return outputJSON(vcp.ResolveRules(constitution, vcp.DerivedConstraints(ctx)))
		},
	}
}

// intentCmd creates the intent command.
func intentCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "intent",
		Usage:     "Classify the likely intent behind a context request",
		ArgsUsage: "<profile>",
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(vcp.ClassifyIntent(ctx, clock()))
		},
	}
}

// transitionCmd creates the transition command.
func transitionCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "transition",
		Usage:     "Detect a life transition implied by a patch (reads the patch from stdin)",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "Persist the merged context"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("patch must be piped via stdin"))
			}
			raw, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if raw == "" {
				return outputError(errors.NewInvalidRequest("patch is required"))
			}

			var patch vcp.Context
			if err := json.Unmarshal([]byte(raw), &patch); err != nil {
				return outputError(errors.NewInvalidRequest("patch must be a partial context object"))
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			now := clock()
			merged := vcp.Merge(ctx, &patch, now)
			result := vcp.DetectTransition(ctx, merged)

			if c.Bool("apply") {
				if err := checkContextSize(cfg, merged); err != nil {
					return outputError(err)
				}
				if err := st.SaveContext(merged, now); err != nil {
					return outputError(err)
				}
			}

			return outputJSON(map[string]any{
				"transition": result,
				"applied":    c.Bool("apply"),
			})
		},
	}
}

// promptCmd creates the prompt command.
func promptCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "prompt",
		Usage:     "Build the persona system prompt for a context",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "constitution", Usage: "Constitution ID (defaults to the profile's own)"},
			&cli.StringFlag{Name: "persona", Usage: "Persona override (muse, ambassador, godparent, sentinel, nanny, mediator)"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			ctx, err := st.GetContext(profileID)
			if err != nil {
				return outputError(err)
			}

			constitutionID := c.String("constitution")
			if constitutionID == "" {
				constitutionID = ctx.Constitution.ID
			}
			if _, ok := vcp.ConstitutionByID(constitutionID); !ok {
				return outputError(errors.NewNotFound(constitutionID))
			}

			prompt := vcp.BuildSystemPrompt(ctx, constitutionID, vcp.Persona(c.String("persona")), clock())
			return outputJSON(map[string]any{
				"profile_id":      profileID,
				"constitution_id": constitutionID,
				"prompt":          prompt,
			})
		},
	}
}

// auditCmd creates the audit command.
func auditCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "audit",
		Usage:     "Show the sharing audit trail",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Usage: "Filter by platform ID"},
			&cli.StringFlag{Name: "event", Usage: "Filter by event type"},
			&cli.BoolFlag{Name: "today", Usage: "Only entries from today"},
			&cli.BoolFlag{Name: "summary", Usage: "Print aggregate counts instead of entries"},
			&cli.StringFlag{Name: "stakeholder", Usage: "Add a stakeholder comparison (hr, manager, community, coach, employee)"},
			&cli.BoolFlag{Name: "clear", Usage: "Clear the trail"},
		},
		Action: func(c *cli.Context) error {
			profileID, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("clear") {
				if err := st.ClearAudit(profileID); err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"profile_id": profileID, "cleared": true})
			}

			trail := st.AuditTrail(profileID)

			if c.Bool("summary") || c.String("stakeholder") != "" {
				entries := trail.Entries()
				result := map[string]any{
					"profile_id": profileID,
					"summary":    audit.Summarize(entries),
				}
				if stakeholder := c.String("stakeholder"); stakeholder != "" {
					result["comparison"] = audit.Compare(entries, audit.Stakeholder(stakeholder))
				}
				return outputJSON(result)
			}

			var entries []audit.Entry
			switch {
			case c.Bool("today"):
				entries = trail.Today(clock())
			case c.String("platform") != "":
				entries = trail.ByPlatform(c.String("platform"))
			case c.String("event") != "":
				entries = trail.ByEventType(audit.EventType(c.String("event")))
			default:
				entries = trail.Entries()
			}

			return outputJSON(map[string]any{
				"profile_id": profileID,
				"entries":    entries,
			})
		},
	}
}

// scheduleCmd creates the schedule command.
func scheduleCmd() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Recommend practice windows over the next three days",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "shift", Value: "day", Usage: "Current shift: off|day|night|recovery"},
			&cli.IntFlag{Name: "energy", Value: 3, Usage: "Current energy 1-5"},
			&cli.IntFlag{Name: "quiet-start", Value: 22, Usage: "Quiet hours start (0-23)"},
			&cli.IntFlag{Name: "quiet-end", Value: 8, Usage: "Quiet hours end (0-23)"},
			&cli.StringFlag{Name: "preferred", Usage: "Comma-separated preferred times: morning|afternoon|evening"},
		},
		Action: func(c *cli.Context) error {
			windows := vcp.RecommendPracticeWindows(vcp.ScheduleInput{
				CurrentShift:   vcp.Shift(c.String("shift")),
				CurrentEnergy:  c.Int("energy"),
				QuietStart:     c.Int("quiet-start"),
				QuietEnd:       c.Int("quiet-end"),
				PreferredTimes: parseFields(c.String("preferred")),
			})
			return outputJSON(map[string]any{"windows": windows})
		},
	}
}

// webCmd creates the web command.
func webCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the read-only context viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8590, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(st, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// profileArg returns the required positional profile ID.
func profileArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.NewInvalidRequest("profile argument is required")
	}
	return c.Args().First(), nil
}

// platformFlags are the manifest flags shared by preview and filter.
func platformFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "platform", Required: true, Usage: "Platform ID"},
		&cli.StringFlag{Name: "required", Usage: "Comma-separated required fields"},
		&cli.StringFlag{Name: "optional", Usage: "Comma-separated optional fields"},
	}
}

// platformArgs extracts the profile ID and platform manifest for preview
// and filter.
func platformArgs(c *cli.Context) (string, vcp.PlatformManifest, error) {
	profileID, err := profileArg(c)
	if err != nil {
		return "", vcp.PlatformManifest{}, err
	}
	return profileID, vcp.PlatformManifest{
		PlatformID:     c.String("platform"),
		RequiredFields: parseFields(c.String("required")),
		OptionalFields: parseFields(c.String("optional")),
	}, nil
}

// checkContextSize enforces the configured context size ceiling.
func checkContextSize(cfg *config.Config, ctx *vcp.Context) error {
	body, err := json.Marshal(ctx)
	if err != nil {
		return errors.NewInternal(err)
	}
	if len(body) > cfg.ContextMaxChars {
		return errors.NewContextTooLarge(cfg.ContextMaxChars, len(body))
	}
	return nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if vcpErr, ok := err.(*errors.VCPError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", vcpErr.Code, vcpErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseFields splits a comma-separated string into a slice of field names.
func parseFields(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		f := strings.TrimSpace(p)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
