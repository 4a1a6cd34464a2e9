package queries

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/pgformat"
)

// ErrNoPrivilegeChanges is returned when a grant or revoke batch is empty.
var ErrNoPrivilegeChanges = errors.New("no privilege changes")

// Table privilege types accepted by GRANT/REVOKE ... ON TABLE.
const (
	PrivilegeAll        = "ALL"
	PrivilegeSelect     = "SELECT"
	PrivilegeInsert     = "INSERT"
	PrivilegeUpdate     = "UPDATE"
	PrivilegeDelete     = "DELETE"
	PrivilegeTruncate   = "TRUNCATE"
	PrivilegeReferences = "REFERENCES"
	PrivilegeTrigger    = "TRIGGER"
	PrivilegeMaintain   = "MAINTAIN"
)

var tablePrivilegeTypes = map[string]bool{
	PrivilegeAll:        true,
	PrivilegeSelect:     true,
	PrivilegeInsert:     true,
	PrivilegeUpdate:     true,
	PrivilegeDelete:     true,
	PrivilegeTruncate:   true,
	PrivilegeReferences: true,
	PrivilegeTrigger:    true,
	PrivilegeMaintain:   true,
}

// GrantTablePrivilegesSQL returns one DO block applying every grant.
// Relations are resolved by id through regclass so renamed tables are still
// found.
func GrantTablePrivilegesSQL(changes []models.TablePrivilegeChange) (string, error) {
	return privilegesBlock("grant", changes)
}

// RevokeTablePrivilegesSQL returns one DO block applying every revoke. A
// change with IsGrantable revokes only the grant option.
func RevokeTablePrivilegesSQL(changes []models.TablePrivilegeChange) (string, error) {
	return privilegesBlock("revoke", changes)
}

func privilegesBlock(action string, changes []models.TablePrivilegeChange) (string, error) {
	if len(changes) == 0 {
		return "", ErrNoPrivilegeChanges
	}

	var body strings.Builder
	body.WriteString("\nbegin\n")
	for i, c := range changes {
		stmt, err := privilegeStatement(action, c)
		if err != nil {
			return "", fmt.Errorf("%s change %d: %w", action, i, err)
		}
		body.WriteString("  ")
		body.WriteString(stmt)
		body.WriteString("\n")
	}
	body.WriteString("end\n")

	tag := dollarTag(body.String())
	return "do " + tag + body.String() + tag + ";", nil
}

func privilegeStatement(action string, c models.TablePrivilegeChange) (string, error) {
	privilege := strings.ToUpper(strings.TrimSpace(c.PrivilegeType))
	if !tablePrivilegeTypes[privilege] {
		return "", fmt.Errorf("unsupported privilege type %q", c.PrivilegeType)
	}
	if c.RelationID == 0 {
		return "", errors.New("relation id is required")
	}
	if c.Grantee == "" {
		return "", errors.New("grantee is required")
	}

	relation := strconv.FormatUint(uint64(c.RelationID), 10) + "::regclass"
	privilege = strings.ToLower(privilege)

	var format string
	switch action {
	case "grant":
		format = "grant " + privilege + " on table %s to "
	default:
		if c.IsGrantable {
			format = "revoke grant option for " + privilege + " on table %s from "
		} else {
			format = "revoke " + privilege + " on table %s from "
		}
	}

	args := []string{relation}
	if strings.EqualFold(c.Grantee, "public") {
		format += "public"
	} else {
		grantee, err := pgformat.Literal(c.Grantee)
		if err != nil {
			return "", fmt.Errorf("quote grantee: %w", err)
		}
		format += "%I"
		args = append(args, grantee)
	}

	if action == "grant" && c.IsGrantable {
		format += " with grant option"
	}

	return fmt.Sprintf("execute format(%s, %s);", pgformat.MustLiteral(format), strings.Join(args, ", ")), nil
}

// dollarTag picks a dollar-quote delimiter that does not occur in body.
func dollarTag(body string) string {
	if !strings.Contains(body, "$$") {
		return "$$"
	}
	for i := 0; ; i++ {
		tag := "$studio_" + strconv.Itoa(i) + "$"
		if !strings.Contains(body, tag) {
			return tag
		}
	}
}
