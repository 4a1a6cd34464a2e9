package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/privileges"
)

// newPrivilegesCmd creates the privileges subcommand
func newPrivilegesCmd() *cobra.Command {
	var (
		schema  string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "privileges",
		Short: "Show table grants of the project as a tree",
		Long: `Show every grant on tables, views and materialized views outside the
system schemas, grouped by schema. Grants to the Data API roles are
highlighted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			project, err := services.Project("")
			if err != nil {
				return err
			}
			read := services.Reader.TablePrivileges
			if refresh {
				read = services.Reader.RefetchTablePrivileges
			}
			snapshot, err := read(cmd.Context(), project)
			if err != nil {
				return err
			}

			if schema != "" {
				filtered := snapshot[:0:0]
				for _, rel := range snapshot {
					if rel.Schema == schema {
						filtered = append(filtered, rel)
					}
				}
				snapshot = filtered
			}

			return render(snapshot, func() {
				fmt.Print(privilegeTree(project.ProjectRef, snapshot))
			})
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "only show this schema")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cached snapshot")
	return cmd
}

// privilegeTree renders the snapshot as project > schema > relation > grantee.
func privilegeTree(projectRef string, snapshot []models.RelationPrivileges) string {
	tree := treeprint.NewWithRoot(bold.Sprint(projectRef))
	if len(snapshot) == 0 {
		tree.AddNode(muted.Sprint("no relations"))
		return tree.String()
	}

	schemas := make(map[string]treeprint.Tree)
	for _, rel := range snapshot {
		branch, ok := schemas[rel.Schema]
		if !ok {
			branch = tree.AddBranch(rel.Schema)
			schemas[rel.Schema] = branch
		}

		access := privileges.ProjectAPIAccess([]models.RelationPrivileges{rel}, rel.RelationID, "", "")
		label := rel.Name + muted.Sprintf(" (%d)", rel.RelationID)
		if access.HasAPIAccess {
			label += " " + success.Sprint("[api]")
		}
		relBranch := branch.AddBranch(label)

		byGrantee := make(map[string][]string)
		for _, g := range rel.Privileges {
			p := g.PrivilegeType
			if g.IsGrantable {
				p += "*"
			}
			byGrantee[g.Grantee] = append(byGrantee[g.Grantee], p)
		}
		grantees := make([]string, 0, len(byGrantee))
		for g := range byGrantee {
			grantees = append(grantees, g)
		}
		sort.Strings(grantees)

		for _, g := range grantees {
			name := g
			if access.RolesWithAccess.Has(g) {
				name = warning.Sprint(g)
			}
			relBranch.AddNode(name + ": " + strings.Join(byGrantee[g], ", "))
		}
	}
	return tree.String()
}
