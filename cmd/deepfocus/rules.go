package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage blocking rules",
	Long:  `Rules are stored in the encrypted database and apply immediately to a running daemon.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules by priority",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule",
	RunE:  runRulesAdd,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a rule without saving it",
	RunE:  runRulesValidate,
}

var rulesToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesToggle,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add any missing default rules",
	RunE:  runRulesSeed,
}

var ruleFlags struct {
	name     string
	pattern  string
	action   string
	delay    int
	focus    int
	message  string
	priority int
	inactive bool
}

func init() {
	for _, c := range []*cobra.Command{rulesAddCmd, rulesValidateCmd} {
		c.Flags().StringVar(&ruleFlags.name, "name", "", "Rule name")
		c.Flags().StringVar(&ruleFlags.pattern, "pattern", "", "Domain pattern (substring, glob with * and ?, or regex)")
		c.Flags().StringVar(&ruleFlags.action, "action", string(domain.ActionBlock), "block, delay or conditional")
		c.Flags().IntVar(&ruleFlags.delay, "delay", domain.DefaultDelayMinutes, "Delay in minutes (delay action)")
		c.Flags().IntVar(&ruleFlags.focus, "focus", domain.DefaultRequiredFocusMinutes, "Required focus minutes (conditional action)")
		c.Flags().StringVar(&ruleFlags.message, "message", "", "Reminder message")
		c.Flags().IntVar(&ruleFlags.priority, "priority", domain.DefaultRulePriority, "Priority 0-100; higher wins")
	}
	rulesAddCmd.Flags().BoolVar(&ruleFlags.inactive, "inactive", false, "Create the rule disabled")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesToggleCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesSeedCmd)
}

func ruleFromFlags() domain.Rule {
	return domain.Rule{
		Name:                 ruleFlags.name,
		DomainPattern:        ruleFlags.pattern,
		Action:               domain.BlockAction(ruleFlags.action),
		DelayMinutes:         ruleFlags.delay,
		RequiredFocusMinutes: ruleFlags.focus,
		ReminderMessage:      ruleFlags.message,
		Priority:             ruleFlags.priority,
		IsActive:             !ruleFlags.inactive,
	}
}

// withStore opens the encrypted store for one command.
func withStore(fn func(ctx context.Context, store *infra.EncryptedStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, paths, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, paths)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd.Context(), store)
	}
}

func parseRuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", s)
	}
	return id, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store *infra.EncryptedStore) error {
		rules, err := store.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tACTIVE\tACTION\tPATTERN\tNAME")
		for _, r := range rules {
			action := string(r.Action)
			switch r.Action {
			case domain.ActionDelay:
				action = fmt.Sprintf("delay %dm", r.DelayMinutes)
			case domain.ActionConditional:
				action = fmt.Sprintf("after %dm focus", r.RequiredFocusMinutes)
			}
			fmt.Fprintf(w, "%d\t%d\t%t\t%s\t%s\t%s\n", r.ID, r.Priority, r.IsActive, action, r.DomainPattern, r.Name)
		}
		return w.Flush()
	})(cmd, args)
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	rule := ruleFromFlags()
	if errs := policy.NewEngine(nil).Validate(rule); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "  -", e)
		}
		return fmt.Errorf("invalid rule")
	}
	return withStore(func(ctx context.Context, store *infra.EncryptedStore) error {
		if err := store.Create(ctx, &rule); err != nil {
			return err
		}
		fmt.Printf("Added rule %d: %s (%s)\n", rule.ID, rule.Name, rule.DomainPattern)
		return nil
	})(cmd, args)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	errs := policy.NewEngine(nil).Validate(ruleFromFlags())
	if len(errs) == 0 {
		fmt.Println("Rule is valid")
		return nil
	}
	for _, e := range errs {
		fmt.Println("  -", e)
	}
	return fmt.Errorf("%d problem(s) found", len(errs))
}

func runRulesToggle(cmd *cobra.Command, args []string) error {
	id, err := parseRuleID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, store *infra.EncryptedStore) error {
		rule, err := store.Toggle(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Rule %d (%s) active: %t\n", rule.ID, rule.Name, rule.IsActive)
		return nil
	})(cmd, args)
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	id, err := parseRuleID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, store *infra.EncryptedStore) error {
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted rule %d\n", id)
		return nil
	})(cmd, args)
}

func runRulesSeed(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store *infra.EncryptedStore) error {
		existing, err := store.List(ctx)
		if err != nil {
			return err
		}
		missing := policy.MissingDefaults(existing)
		for i := range missing {
			if err := store.Create(ctx, &missing[i]); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", missing[i].Name, missing[i].DomainPattern)
		}
		if len(missing) == 0 {
			fmt.Println("All default rules already present")
		}
		return nil
	})(cmd, args)
}
