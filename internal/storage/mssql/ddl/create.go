// Package ddl provides MSSQL-specific helpers for generating CREATE TABLE
// statements from the generic ddl.TableDef model.
//
// The builder here:
//   - Uses SQL Server-style identifier quoting: [schema].[table], [col].
//   - Wraps CREATE TABLE in an IF OBJECT_ID(...) IS NULL guard since T-SQL
//     does not support CREATE TABLE IF NOT EXISTS.
package ddl

import (
	"fmt"
	"strings"

	gddl "dividapgfn/internal/ddl"
)

// BuildCreateTableSQL returns a T-SQL script that creates a table matching
// the provided definition if it does not already exist:
//
//	IF OBJECT_ID(N'[dbo].[pgfn_devedores]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[pgfn_devedores] (
//	    [cpf_cnpj] NVARCHAR(MAX) NOT NULL,
//	    [valor_consolidado] DECIMAL(18,2) NOT NULL
//	  );
//	END;
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	body, err := gddl.RenderCreateTable(t, "CREATE TABLE", quoteIdent)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	lines := strings.Split(body, "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND;",
		QuoteFQN(strings.TrimSpace(t.FQN)),
		strings.Join(lines, "\n"),
	), nil
}

// quoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QuoteFQN quotes a possibly schema-qualified table name:
//
//	"dbo.pgfn_devedores" -> [dbo].[pgfn_devedores]
func QuoteFQN(fqn string) string {
	return gddl.QuoteFQN(fqn, quoteIdent)
}
