package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/studio/internal/app"
	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/privileges"
)

// relationFlags select one relation by id or by schema and name.
type relationFlags struct {
	relationID uint32
	schema     string
	table      string
}

func (f *relationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.relationID, "relation-id", 0, "relation oid")
	cmd.Flags().StringVar(&f.schema, "schema", "public", "schema of --table")
	cmd.Flags().StringVar(&f.table, "table", "", "table name")
}

func (f *relationFlags) validate() error {
	if f.relationID == 0 && f.table == "" {
		return errors.New("either --relation-id or --table is required")
	}
	return nil
}

// accessReport is the machine-readable outcome of api-access commands.
type accessReport struct {
	Project    string `json:"project" yaml:"project"`
	RelationID uint32 `json:"relation_id" yaml:"relation_id"`
	Schema     string `json:"schema" yaml:"schema"`
	Table      string `json:"table" yaml:"table"`
	privileges.APIAccess `yaml:",inline"`
}

// newAPIAccessCmd creates the api-access command group
func newAPIAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-access",
		Short: "Show or change Data API access of a table",
		Long: `A table is reachable through the Data API when anon or authenticated
holds at least one privilege on it. enable grants ALL to both roles and
disable revokes ALL from both.`,
	}
	cmd.AddCommand(
		newAPIAccessStatusCmd(),
		newAPIAccessSetCmd("enable", true),
		newAPIAccessSetCmd("disable", false),
	)
	return cmd
}

func newAPIAccessStatusCmd() *cobra.Command {
	var flags relationFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a table is reachable through the Data API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			_, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			report, err := readAccess(cmd.Context(), services, flags, false)
			if err != nil {
				return err
			}
			return render(report, func() { printAccess(report) })
		},
	}
	flags.register(cmd)
	return cmd
}

func newAPIAccessSetCmd(use string, enable bool) *cobra.Command {
	var flags relationFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: strings.ToUpper(use[:1]) + use[1:] + " Data API access of a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			_, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			ctx := cmd.Context()
			project, err := services.Project("")
			if err != nil {
				return err
			}
			rel, err := findRelation(ctx, services, project, flags)
			if err != nil {
				return err
			}

			mutator := services.Mutator(nil)
			if _, err := mutator.Set(ctx, enable, privileges.MutationVariables{
				ProjectRef:       project.ProjectRef,
				ConnectionString: project.ConnectionString,
				RelationID:       rel.RelationID,
				TableName:        rel.Name,
			}, privileges.MutationOptions{}); err != nil {
				return errors.New(privileges.FailureMessage(enable, err))
			}

			// The mutation invalidated the snapshot; read the result back.
			report, err := readAccess(ctx, services, relationFlags{relationID: rel.RelationID}, true)
			if err != nil {
				return err
			}
			return render(report, func() { printAccess(report) })
		},
	}
	flags.register(cmd)
	return cmd
}

// findRelation resolves flags against the project's privilege snapshot.
func findRelation(ctx context.Context, services *app.Services, project privileges.ProjectVars, flags relationFlags) (models.RelationPrivileges, error) {
	snapshot, err := services.Reader.TablePrivileges(ctx, project)
	if err != nil {
		return models.RelationPrivileges{}, err
	}
	for _, rel := range snapshot {
		if flags.relationID != 0 && rel.RelationID == flags.relationID {
			return rel, nil
		}
		if flags.relationID == 0 && rel.Schema == flags.schema && rel.Name == flags.table {
			return rel, nil
		}
	}
	if flags.relationID != 0 {
		return models.RelationPrivileges{}, fmt.Errorf("no relation with id %d in project %s", flags.relationID, project.ProjectRef)
	}
	return models.RelationPrivileges{}, fmt.Errorf("no relation %s.%s in project %s", flags.schema, flags.table, project.ProjectRef)
}

func readAccess(ctx context.Context, services *app.Services, flags relationFlags, refetch bool) (accessReport, error) {
	project, err := services.Project("")
	if err != nil {
		return accessReport{}, err
	}
	rel, err := findRelation(ctx, services, project, flags)
	if err != nil {
		return accessReport{}, err
	}

	vars := privileges.TableAPIAccessVariables{
		ProjectRef:       project.ProjectRef,
		ConnectionString: project.ConnectionString,
		RelationID:       rel.RelationID,
		Schema:           rel.Schema,
		TableName:        rel.Name,
	}
	read := services.Access.TableAPIAccess
	if refetch {
		read = services.Access.RefetchTableAPIAccess
	}
	result, err := read(ctx, vars, true)
	if err != nil {
		return accessReport{}, err
	}

	return accessReport{
		Project:    project.ProjectRef,
		RelationID: rel.RelationID,
		Schema:     rel.Schema,
		Table:      rel.Name,
		APIAccess:  *result.Data,
	}, nil
}

func printAccess(r accessReport) {
	bold.Printf("%s.%s", r.Schema, r.Table)
	muted.Printf(" (oid %d, project %s)\n", r.RelationID, r.Project)
	fmt.Printf("  Data API access: %s\n", yesNo(r.HasAPIAccess))
	if r.HasAPIAccess {
		fmt.Printf("  Roles:           %s\n", strings.Join(r.RolesWithAccess.Sorted(), ", "))
	}
}
