package transform

import (
	"errors"
	"strings"
	"testing"

	"github.com/klytics/smartsheet/internal/sheet"
)

func orders() *sheet.Table {
	return sheet.NewTable([][]string{
		{"Region", "Product", "Qty", "Price"},
		{"North", "Widget", "2", "10"},
		{"South", "Gadget", "1", "25.5"},
		{"North", "Gadget", "4", "25.5"},
		{"East", "Widget", "", "10"},
	})
}

func TestApplyAddColumnAndFilter(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpAddColumn, Name: "Total", Expr: `num(row["Qty"]) * row["Price"]`},
		{Op: OpFilter, Expr: `num(row["Total"]) > 20`},
	}}

	src := orders()
	out, err := Apply(src, plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := strings.Join(out.Header, ","); got != "Region,Product,Qty,Price,Total" {
		t.Errorf("unexpected header %s", got)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(out.Rows), out.Rows)
	}
	if out.Rows[0][4] != "25.5" || out.Rows[1][4] != "102" {
		t.Errorf("unexpected totals %q, %q", out.Rows[0][4], out.Rows[1][4])
	}
	if len(src.Header) != 4 || len(src.Rows) != 4 {
		t.Error("Apply modified its input")
	}
}

func TestApplyColumnOps(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpRename, From: "qty", To: "Quantity"},
		{Op: OpFillEmpty, Columns: []string{"Quantity"}, Value: "0"},
		{Op: OpDropColumns, Columns: []string{"Price"}},
		{Op: OpKeepColumns, Columns: []string{"Quantity", "Region"}},
	}}

	out, err := Apply(orders(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := strings.Join(out.Header, ","); got != "Quantity,Region" {
		t.Errorf("unexpected header %s", got)
	}
	if out.Rows[3][0] != "0" || out.Rows[3][1] != "East" {
		t.Errorf("unexpected last row %v", out.Rows[3])
	}
}

func TestApplySortDedupeReplace(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpSort, By: []string{"Price", "Qty"}, Desc: true},
		{Op: OpDedupe, Columns: []string{"Product"}},
		{Op: OpReplace, Column: "Product", Find: "get", With: "GET"},
		{Op: OpSetColumn, Name: "Region", Expr: `lower(row["Region"])`},
	}}

	out, err := Apply(orders(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 rows after dedupe, got %v", out.Rows)
	}
	if out.Rows[0][0] != "north" || out.Rows[0][1] != "GadGET" || out.Rows[0][2] != "4" {
		t.Errorf("unexpected first row %v", out.Rows[0])
	}
	if out.Rows[1][1] != "WidGET" || out.Rows[1][2] != "2" {
		t.Errorf("unexpected second row %v", out.Rows[1])
	}
}

func TestApplyGroup(t *testing.T) {
	plan := &Plan{Steps: []Step{{
		Op: OpGroup,
		By: []string{"Region"},
		Aggregates: []Aggregate{
			{Column: "Qty", Func: "sum", As: "Units"},
			{Func: "count"},
			{Column: "Price", Func: "max"},
			{Column: "Price", Func: "avg"},
		},
	}}}

	out, err := Apply(orders(), plan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := strings.Join(out.Header, ","); got != "Region,Units,count,max_Price,avg_Price" {
		t.Errorf("unexpected header %s", got)
	}

	want := [][]string{
		{"North", "6", "2", "25.5", "17.75"},
		{"South", "1", "1", "25.5", "25.5"},
		{"East", "0", "1", "10", "10"},
	}
	if len(out.Rows) != len(want) {
		t.Fatalf("expected %d groups, got %v", len(want), out.Rows)
	}
	for i := range want {
		if strings.Join(out.Rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("group %d: got %v, want %v", i, out.Rows[i], want[i])
		}
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"missing column", Step{Op: OpDropColumns, Columns: []string{"Nope"}}, `column "Nope" not found`},
		{"bad expression", Step{Op: OpAddColumn, Name: "X", Expr: `row["Qty"] +`}, "invalid expression"},
		{"non-bool filter", Step{Op: OpFilter, Expr: `row["Qty"]`}, "true or false"},
		{"set unknown column", Step{Op: OpSetColumn, Name: "Nope", Expr: `1`}, `column "Nope" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &Plan{Steps: []Step{{Op: OpSort, By: []string{"Qty"}}, tt.step}}
			_, err := Apply(orders(), plan)
			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("expected StepError, got %v", err)
			}
			if stepErr.Index != 2 || stepErr.Op != tt.step.Op {
				t.Errorf("unexpected step attribution %d (%s)", stepErr.Index, stepErr.Op)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"b", "a", 1},
		{"", "1", 1},
		{"x", "x", 0},
	}
	for _, tt := range tests {
		if got := compare(tt.a, tt.b); got != tt.want {
			t.Errorf("compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
