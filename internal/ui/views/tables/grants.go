package tables

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// GrantsPanel lists the grants of one relation. Grants to the Data API
// roles are highlighted.
type GrantsPanel struct {
	width    int
	height   int
	relation *models.RelationPrivileges
}

// SetSize sets the panel dimensions.
func (p *GrantsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetRelation selects the relation to show. nil clears the panel.
func (p *GrantsPanel) SetRelation(rel *models.RelationPrivileges) {
	p.relation = rel
}

// View renders the grants list.
func (p *GrantsPanel) View() string {
	var b strings.Builder

	if p.relation == nil {
		b.WriteString(styles.MutedStyle.Render("No relation selected"))
		return p.wrap(b.String())
	}

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Grants: %s", p.relation.QualifiedName())))
	b.WriteString("\n\n")

	header := lipgloss.NewStyle().Bold(true).Foreground(styles.ColorMuted)
	b.WriteString(header.Render(fmt.Sprintf("%-20s %-12s %-16s %s", "Grantee", "Privilege", "Grantor", "Grantable")))
	b.WriteString("\n")

	if len(p.relation.Privileges) == 0 {
		b.WriteString(styles.MutedStyle.Render("No privileges granted"))
		return p.wrap(b.String())
	}

	visible := len(p.relation.Privileges)
	if p.height > 8 {
		visible = min(visible, p.height-8)
	}

	apiRoles := privileges.NewRoleSet(privileges.APIAccessRoles...)
	for _, g := range p.relation.Privileges[:visible] {
		grantable := ""
		if g.IsGrantable {
			grantable = "✓"
		}
		line := fmt.Sprintf("%-20s %-12s %-16s %s",
			truncate(g.Grantee, 20), g.PrivilegeType, truncate(g.Grantor, 16), grantable)
		if apiRoles.Has(g.Grantee) {
			line = styles.AccentStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if visible < len(p.relation.Privileges) {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("(%d of %d)", visible, len(p.relation.Privileges))))
	}

	return p.wrap(strings.TrimRight(b.String(), "\n"))
}

func (p *GrantsPanel) wrap(content string) string {
	panel := styles.PanelStyle
	if p.width > 0 {
		panel = panel.Width(p.width - 2)
	}
	return panel.Render(content)
}

// truncate shortens s to maxWidth display columns.
func truncate(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}
