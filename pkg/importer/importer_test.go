package importer

import "testing"

func TestParseTabSeparated(t *testing.T) {
	text := "101\t2026-08-30\tabc123\tS/ 46.90\tCARLOS\n102\t2026-08-30\tdef456\t12,50"
	rows, errs := Parse(text)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if rows[0].Nro != 101 || rows[0].Llave != "ABC123" || rows[0].Monto != 46.90 || rows[0].Envio != "CARLOS" {
		t.Fatalf("row 0 mismatch: %+v", rows[0])
	}
	if rows[1].Monto != 12.50 || rows[1].Envio != "" {
		t.Fatalf("row 1 mismatch: %+v", rows[1])
	}
}

func TestParseHeaderSkipped(t *testing.T) {
	text := "nro,fecha,llave,monto\n200,2026-08-31,xyz,20.00"
	rows, errs := Parse(text)
	if len(errs) != 0 {
		t.Fatalf("header should be skipped silently, got %v", errs)
	}
	if len(rows) != 1 || rows[0].Nro != 200 {
		t.Fatalf("expected one data row, got %+v", rows)
	}
}

func TestParseSemicolonSeparated(t *testing.T) {
	rows, errs := Parse("300;2026-08-31;clave;99.99")
	if len(errs) != 0 || len(rows) != 1 {
		t.Fatalf("rows=%v errs=%v", rows, errs)
	}
	if rows[0].Fecha.Format("2006-01-02") != "2026-08-31" {
		t.Fatalf("fecha mismatch: %v", rows[0].Fecha)
	}
}

func TestParseBadLinesReported(t *testing.T) {
	text := "101,2026-08-30,abc,46.90\nnoesnum,2026-08-30,abc,46.90\n103,31/08/2026,abc,46.90\n104,2026-08-30,,46.90\n105,2026-08-30,abc,gratis\n106,2026-08-30,abc"
	rows, errs := Parse(text)
	if len(rows) != 1 || rows[0].Nro != 101 {
		t.Fatalf("expected only row 101 to survive, got %+v", rows)
	}
	if len(errs) != 5 {
		t.Fatalf("expected 5 line errors got %d: %v", len(errs), errs)
	}
	if errs[0].Line != 2 {
		t.Fatalf("expected first error on line 2, got %+v", errs[0])
	}
}

func TestParseBlankLinesIgnored(t *testing.T) {
	rows, errs := Parse("\n\n400,2026-08-31,k,10.00\n\n")
	if len(errs) != 0 || len(rows) != 1 {
		t.Fatalf("rows=%v errs=%v", rows, errs)
	}
}

func TestParseNegativeMontoRejected(t *testing.T) {
	_, errs := Parse("500,2026-08-31,k,-5.00")
	if len(errs) != 1 {
		t.Fatalf("expected negative amount rejected, got %v", errs)
	}
}
