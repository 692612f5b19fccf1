package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Member management commands",
	}

	cmd.AddCommand(newMemberListCmd())
	cmd.AddCommand(newMemberGetCmd())
	cmd.AddCommand(newMemberInviteCmd())
	cmd.AddCommand(newMemberUninviteCmd())
	cmd.AddCommand(newMemberDisableCmd())
	cmd.AddCommand(newMemberSetPermsCmd())
	cmd.AddCommand(newMemberSetGroupCmd())

	return cmd
}

func newMemberListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result MemberList

			if err := client.Get("/api/v1/members", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMemberGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <username>",
		Short: "Show a single member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Member

			if err := client.Get("/api/v1/members/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMemberInviteCmd() *cobra.Command {
	var tempName, perms string
	var group int

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create an invitation slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"temp_name":        tempName,
				"permissions":      splitPerms(perms),
				"permission_group": group,
			}
			var result Slot

			if err := client.Post("/api/v1/members/invite", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tempName, "name", "", "Temporary slot name (required)")
	cmd.Flags().StringVar(&perms, "perms", "", "Permissions to grant, |-separated (e.g. VIEW_MEMBERS|CREATE_MEMBERS)")
	cmd.Flags().IntVar(&group, "group", 0, "Permission group for the new member (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func newMemberUninviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninvite <temp-name>",
		Short: "Withdraw an unfilled invitation slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/members/" + args[0] + "/invitation"); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Invitation %s withdrawn", args[0]))
			return nil
		},
	}
}

func newMemberDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <username>",
		Short: "Disable a member, reverting them to an unfilled slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Slot

			if err := client.Post("/api/v1/members/"+args[0]+"/disable", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newMemberSetPermsCmd() *cobra.Command {
	var perms string

	cmd := &cobra.Command{
		Use:   "set-perms <username>",
		Short: "Replace a member's permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"permissions": splitPerms(perms)}

			if err := client.Put("/api/v1/members/"+args[0]+"/permissions", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Permissions updated for %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&perms, "perms", "", "Permissions to set, |-separated (empty revokes all)")

	return cmd
}

func newMemberSetGroupCmd() *cobra.Command {
	var group int

	cmd := &cobra.Command{
		Use:   "set-group <username>",
		Short: "Move a member to another permission group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"permission_group": group}

			if err := client.Put("/api/v1/members/"+args[0]+"/permission-group", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Group updated for %s", args[0]))
			return nil
		},
	}

	cmd.Flags().IntVar(&group, "group", 0, "Destination permission group (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func splitPerms(perms string) []string {
	if perms == "" {
		return []string{}
	}
	parts := strings.Split(perms, "|")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
