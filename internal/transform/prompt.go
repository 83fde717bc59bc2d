package transform

import (
	"fmt"
	"strings"

	"github.com/klytics/smartsheet/internal/sheet"
)

const stepSchema = `Each step is an object with an "op" and the fields that op needs:
- {"op": "add_column", "name": "Total", "expr": "row[\"Qty\"] * row[\"Price\"]"}
- {"op": "set_column", "name": "Name", "expr": "upper(row[\"Name\"])"}
- {"op": "filter", "expr": "num(row[\"Amount\"]) > 100"}   (keeps rows where expr is true)
- {"op": "drop_columns", "columns": ["Notes"]}
- {"op": "keep_columns", "columns": ["Name", "Total"]}   (also sets column order)
- {"op": "rename", "from": "Amt", "to": "Amount"}
- {"op": "sort", "by": ["Total"], "desc": true}
- {"op": "dedupe", "columns": ["Email"]}   (empty columns = whole row)
- {"op": "fill_empty", "columns": ["City"], "value": "Unknown"}
- {"op": "replace", "column": "Phone", "find": "-", "with": ""}
- {"op": "group", "by": ["Region"], "aggregates": [{"column": "Sales", "func": "sum", "as": "Total Sales"}]}
  (func is one of sum, count, avg, min, max)

Expressions use expr-lang syntax. The current row is row["Column Name"]; numeric
cells are numbers, all other cells are strings. Helpers: num(x) converts to a
number (blank or text = 0), str(x) converts to text, empty(x) tests for blank.
Built-in functions upper, lower, trim, len, abs, round, floor and ceil are
available, as are the operators contains, startsWith, endsWith and matches
(row["Name"] contains "Ltd") and the ternary cond ? a : b.`

// Prompt builds the instruction sent to the model for one sheet.
func Prompt(sheetNumber int, t *sheet.Table, instruction string) string {
	kinds := t.ColumnKinds()
	cols := make([]string, len(t.Header))
	for j, h := range t.Header {
		kind := sheet.KindEmpty
		if j < len(kinds) {
			kind = kinds[j]
		}
		cols[j] = fmt.Sprintf("'%s': %s", h, kind)
	}

	return fmt.Sprintf(`You are an expert spreadsheet data engineer.

=== DATASET INFO (Sheet %d) ===
Columns: %s
Total Data Rows: %d
Preview:
%s
=== USER INSTRUCTION ===
"%s"

=== TASK ===
Translate the instruction into an ordered plan of steps that transforms the table.

%s

=== RULES ===
1. ONLY return JSON: {"explanation": "one sentence", "steps": [ ... ]}
2. Refer to columns by their exact header names.
3. Use as few steps as possible. Steps run in order; later steps see earlier results.
`, sheetNumber, strings.Join(cols, ", "), len(t.Rows), t.Preview(5), instruction, stepSchema)
}
