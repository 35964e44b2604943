package main

import (
	"fmt"
	"testing"
	"time"

	"pedidos/models"
)

func dia(day string, hour int) time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return t.Add(time.Duration(hour) * time.Hour)
}

func statsFixture() []models.Pedido {
	return []models.Pedido{
		{Nro: 101, Estado: models.EstadoValidado, Monto: 40.00, Fecha: dia("2026-08-30", 10), Envio: "CARLOS", TipoPago: models.TipoEfectivo, ValidadoPor: "admin"},
		{Nro: 102, Estado: models.EstadoValidado, Monto: 20.00, Fecha: dia("2026-08-30", 11), Envio: "CARLOS", TipoPago: "TARJETA", ValidadoPor: "admin"},
		{Nro: 103, Estado: models.EstadoValidado, Monto: 10.00, Fecha: dia("2026-08-31", 12), Envio: "LUIS", TipoPago: "QR", ValidadoPor: "maria"},
		{Nro: 104, Estado: models.EstadoPendiente, Monto: 15.00, Fecha: dia("2026-08-31", 14), Envio: "LUIS", SlaFuera: "SI"},
		{Nro: 105, Estado: models.EstadoRechazado, Monto: 5.00, Fecha: dia("2026-08-31", 15), Envio: "LUIS", ValidadoPor: "admin"},
		{Nro: 106, Estado: models.EstadoReservado, Fecha: dia("2026-08-31", 15)},
	}
}

func TestComputeKPIs(t *testing.T) {
	k := computeKPIs(statsFixture())
	if k.Total != 5 {
		t.Fatalf("expected total 5 (reserved slot excluded) got %d", k.Total)
	}
	if k.Validados != 3 || k.Cancelados != 1 || k.Pendientes != 1 {
		t.Fatalf("state counts mismatch: %+v", k)
	}
	if k.MontoValidado != 70.00 {
		t.Fatalf("expected monto_validado 70.00 got %v", k.MontoValidado)
	}
	if k.FillRate != 60.0 {
		t.Fatalf("expected fill_rate 60 got %v", k.FillRate)
	}
	if k.SlaFuera != 1 || k.SlaBase != 4 || k.SlaRate != 25.0 {
		t.Fatalf("SLA mismatch: %+v", k)
	}
}

func TestComputeKPIsReservedOnly(t *testing.T) {
	k := computeKPIs([]models.Pedido{{Nro: 1, Estado: models.EstadoReservado}})
	if k.Total != 0 || k.FillRate != 0 || k.SlaBase != 0 {
		t.Fatalf("reserved-only input should yield empty KPIs, got %+v", k)
	}
}

func TestPorDia(t *testing.T) {
	dias := porDia(statsFixture())
	if len(dias) != 2 {
		t.Fatalf("expected 2 days got %d", len(dias))
	}
	if dias[0].Dia != "2026-08-30" || dias[0].Count != 2 || dias[0].Monto != 60.00 {
		t.Fatalf("day 0 mismatch: %+v", dias[0])
	}
	// only validated orders contribute to a day's monto
	if dias[1].Dia != "2026-08-31" || dias[1].Count != 4 || dias[1].Monto != 10.00 {
		t.Fatalf("day 1 mismatch: %+v", dias[1])
	}
}

func TestPorPagoGrouping(t *testing.T) {
	s := porPago(statsFixture())
	// TARJETA and QR both roll up into POS
	if s.POS != 2 || s.Tarjeta != 1 || s.QR != 1 {
		t.Fatalf("POS grouping mismatch: %+v", s)
	}
	if s.Efectivo != 1 || s.Online != 0 || s.SinTipo != 0 {
		t.Fatalf("payment counts mismatch: %+v", s)
	}
	if s.MontoPOS != 30.00 || s.MontoEfe != 40.00 || s.MontoOnl != 0 {
		t.Fatalf("payment amounts mismatch: %+v", s)
	}
}

func TestPorRepartidor(t *testing.T) {
	reps := porRepartidor(statsFixture())
	if len(reps) != 2 {
		t.Fatalf("expected 2 drivers got %d", len(reps))
	}
	if reps[0].Nombre != "CARLOS" || reps[0].Validados != 2 {
		t.Fatalf("expected CARLOS first with 2 validated, got %+v", reps[0])
	}
	if reps[1].Nombre != "LUIS" || reps[1].Validados != 1 || reps[1].Cancelados != 1 {
		t.Fatalf("LUIS row mismatch: %+v", reps[1])
	}
}

func TestPorRepartidorTopTen(t *testing.T) {
	var pedidos []models.Pedido
	for d := 1; d <= 12; d++ {
		for i := 0; i < d; i++ {
			pedidos = append(pedidos, models.Pedido{Estado: models.EstadoValidado, Envio: fmt.Sprintf("REP%02d", d), Fecha: dia("2026-08-31", 12)})
		}
	}
	reps := porRepartidor(pedidos)
	if len(reps) != 10 {
		t.Fatalf("expected top 10 got %d", len(reps))
	}
	if reps[0].Nombre != "REP12" || reps[0].Validados != 12 {
		t.Fatalf("expected REP12 first with 12 validated, got %+v", reps[0])
	}
	if reps[9].Validados != 3 {
		t.Fatalf("expected cutoff at 3 validated, got %+v", reps[9])
	}
}

func TestPorHora(t *testing.T) {
	horas := porHora(statsFixture())
	if horas[10] != 1 || horas[11] != 1 || horas[12] != 1 || horas[14] != 1 {
		t.Fatalf("hour buckets mismatch: %v", horas)
	}
	// 105 and the reserved 106 both land at 15:00
	if horas[15] != 2 {
		t.Fatalf("expected 2 orders at 15h got %d", horas[15])
	}
}

func TestPorValidador(t *testing.T) {
	vals := porValidador(statsFixture())
	if len(vals) != 2 {
		t.Fatalf("expected 2 validators got %d", len(vals))
	}
	if vals[0].Nombre != "admin" || vals[0].Count != 3 {
		t.Fatalf("expected admin first with 3, got %+v", vals[0])
	}
	if vals[1].Nombre != "maria" || vals[1].Count != 1 {
		t.Fatalf("maria row mismatch: %+v", vals[1])
	}
}

func TestRecientes(t *testing.T) {
	recs := recientes(statsFixture())
	if len(recs) != 6 {
		t.Fatalf("expected 6 rows got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Nro > recs[i-1].Nro {
			t.Fatalf("recientes not sorted by nro desc: %+v", recs)
		}
	}
	if recs[0].Nro != 106 {
		t.Fatalf("expected newest nro 106 first got %d", recs[0].Nro)
	}
	// orders without a payment type render as "-"
	if recs[2].Nro != 104 || recs[2].TipoPago != "-" {
		t.Fatalf("expected nro 104 with tipo '-', got %+v", recs[2])
	}
	if recs[2].Hora != "14:00" {
		t.Fatalf("expected hora 14:00 got %s", recs[2].Hora)
	}
}

func TestRecientesTopTwenty(t *testing.T) {
	var pedidos []models.Pedido
	for n := 1; n <= 25; n++ {
		pedidos = append(pedidos, models.Pedido{Nro: n, Estado: models.EstadoPendiente, Fecha: dia("2026-08-31", 12)})
	}
	recs := recientes(pedidos)
	if len(recs) != 20 {
		t.Fatalf("expected 20 rows got %d", len(recs))
	}
	if recs[0].Nro != 25 || recs[19].Nro != 6 {
		t.Fatalf("expected nros 25..6, got first=%d last=%d", recs[0].Nro, recs[19].Nro)
	}
}
