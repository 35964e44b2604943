package main

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"pedidos/models"

	"github.com/gin-gonic/gin"
)

// Shapes consumed by the dashboard. Aggregation happens in memory over the
// filtered order set: the volumes here are small-operation scale and the
// client renders several views from one fetch.
type statsKPIs struct {
	Total         int     `json:"total"`
	Validados     int     `json:"validados"`
	Cancelados    int     `json:"cancelados"`
	Pendientes    int     `json:"pendientes"`
	MontoValidado float64 `json:"monto_validado"`
	FillRate      float64 `json:"fill_rate"`
	SlaFuera      int     `json:"sla_fuera"`
	SlaBase       int     `json:"sla_base"`
	SlaRate       float64 `json:"sla_rate"`
}

type statsDia struct {
	Dia   string  `json:"dia"`
	Count int     `json:"count"`
	Monto float64 `json:"monto"`
}

type statsPagos struct {
	POS      int     `json:"pos"`
	Tarjeta  int     `json:"tarjeta"`
	QR       int     `json:"qr"`
	Efectivo int     `json:"efectivo"`
	Online   int     `json:"online"`
	SinTipo  int     `json:"sin_tipo"`
	MontoPOS float64 `json:"monto_pos"`
	MontoEfe float64 `json:"monto_efectivo"`
	MontoOnl float64 `json:"monto_online"`
}

type statsRepartidor struct {
	Nombre     string `json:"nombre"`
	Validados  int    `json:"validados"`
	Cancelados int    `json:"cancelados"`
}

type statsValidador struct {
	Nombre string `json:"nombre"`
	Count  int    `json:"count"`
}

type statsReciente struct {
	Nro      int     `json:"nro"`
	Llave    string  `json:"llave"`
	Estado   string  `json:"estado"`
	Monto    float64 `json:"monto"`
	Envio    string  `json:"envio"`
	TipoPago string  `json:"tipo_pago"`
	Hora     string  `json:"hora"`
}

// statsHandler aggregates KPIs and chart breakdowns over the orders that
// match the desde/hasta/envio filters.
func statsHandler(c *gin.Context) {
	q := db.Model(&models.Pedido{})
	if desde := c.Query("desde"); desde != "" {
		t, err := time.Parse("2006-01-02", desde)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "desde inválido (YYYY-MM-DD)"})
			return
		}
		q = q.Where("fecha >= ?", t)
	}
	if hasta := c.Query("hasta"); hasta != "" {
		t, err := time.Parse("2006-01-02", hasta)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hasta inválido (YYYY-MM-DD)"})
			return
		}
		q = q.Where("fecha < ?", t.AddDate(0, 0, 1))
	}
	if envio := strings.TrimSpace(c.Query("envio")); envio != "" {
		q = q.Where("LOWER(envio) LIKE ?", "%"+strings.ToLower(envio)+"%")
	}
	var pedidos []models.Pedido
	if err := q.Find(&pedidos).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	kpis := computeKPIs(pedidos)
	c.JSON(http.StatusOK, gin.H{
		"kpis":         kpis,
		"por_dia":      porDia(pedidos),
		"pagos":        porPago(pedidos),
		"repartidores": porRepartidor(pedidos),
		"horas":        porHora(pedidos),
		"validadores":  porValidador(pedidos),
		"recientes":    recientes(pedidos),
	})
}

func esCancelado(p models.Pedido) bool {
	return p.Estado == models.EstadoCancelado || p.Estado == models.EstadoRechazado
}

func computeKPIs(pedidos []models.Pedido) statsKPIs {
	var k statsKPIs
	for _, p := range pedidos {
		// reserved slots are placeholders, not real orders
		if p.Estado == models.EstadoReservado {
			continue
		}
		k.Total++
		switch {
		case p.Estado == models.EstadoValidado:
			k.Validados++
			k.MontoValidado += p.Monto
		case esCancelado(p):
			k.Cancelados++
		case p.Estado == models.EstadoPendiente:
			k.Pendientes++
		}
		if strings.TrimSpace(p.SlaFuera) != "" {
			k.SlaFuera++
		}
	}
	if k.Total > 0 {
		k.FillRate = float64(k.Validados) / float64(k.Total) * 100
	}
	k.SlaBase = k.Total - k.Cancelados
	if k.SlaBase > 0 {
		k.SlaRate = float64(k.SlaFuera) / float64(k.SlaBase) * 100
	}
	return k
}

func porDia(pedidos []models.Pedido) []statsDia {
	type acc struct {
		count int
		monto float64
	}
	byDay := map[string]*acc{}
	for _, p := range pedidos {
		key := p.Fecha.Format("2006-01-02")
		a := byDay[key]
		if a == nil {
			a = &acc{}
			byDay[key] = a
		}
		a.count++
		if p.Estado == models.EstadoValidado {
			a.monto += p.Monto
		}
	}
	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]statsDia, 0, len(keys))
	for _, k := range keys {
		out = append(out, statsDia{Dia: k, Count: byDay[k].count, Monto: byDay[k].monto})
	}
	return out
}

// porPago groups validated orders by payment type; TARJETA, QR and generic
// POS all count as POS like the original reporting did.
func porPago(pedidos []models.Pedido) statsPagos {
	var s statsPagos
	for _, p := range pedidos {
		if p.Estado != models.EstadoValidado {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(p.TipoPago))
		switch t {
		case "TARJETA":
			s.POS++
			s.Tarjeta++
			s.MontoPOS += p.Monto
		case "QR":
			s.POS++
			s.QR++
			s.MontoPOS += p.Monto
		case "POS":
			s.POS++
			s.Tarjeta++
			s.MontoPOS += p.Monto
		case models.TipoEfectivo:
			s.Efectivo++
			s.MontoEfe += p.Monto
		case models.TipoOnline:
			s.Online++
			s.MontoOnl += p.Monto
		default:
			s.SinTipo++
		}
	}
	return s
}

func porRepartidor(pedidos []models.Pedido) []statsRepartidor {
	val := map[string]int{}
	can := map[string]int{}
	for _, p := range pedidos {
		if p.Envio == "" {
			continue
		}
		if p.Estado == models.EstadoValidado {
			val[p.Envio]++
		} else if esCancelado(p) {
			can[p.Envio]++
		}
	}
	seen := map[string]bool{}
	var out []statsRepartidor
	for d := range val {
		seen[d] = true
		out = append(out, statsRepartidor{Nombre: d, Validados: val[d], Cancelados: can[d]})
	}
	for d := range can {
		if !seen[d] {
			out = append(out, statsRepartidor{Nombre: d, Cancelados: can[d]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Validados != out[j].Validados {
			return out[i].Validados > out[j].Validados
		}
		return out[i].Nombre < out[j].Nombre
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func porHora(pedidos []models.Pedido) [24]int {
	var horas [24]int
	for _, p := range pedidos {
		horas[p.Fecha.Hour()]++
	}
	return horas
}

func porValidador(pedidos []models.Pedido) []statsValidador {
	byUser := map[string]int{}
	for _, p := range pedidos {
		if p.ValidadoPor != "" {
			byUser[p.ValidadoPor]++
		}
	}
	out := make([]statsValidador, 0, len(byUser))
	for u, n := range byUser {
		out = append(out, statsValidador{Nombre: u, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Nombre < out[j].Nombre
	})
	return out
}

func recientes(pedidos []models.Pedido) []statsReciente {
	sorted := make([]models.Pedido, len(pedidos))
	copy(sorted, pedidos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Nro > sorted[j].Nro })
	if len(sorted) > 20 {
		sorted = sorted[:20]
	}
	out := make([]statsReciente, 0, len(sorted))
	for _, p := range sorted {
		tipo := p.TipoPago
		if tipo == "" {
			tipo = "-"
		}
		out = append(out, statsReciente{
			Nro:      p.Nro,
			Llave:    p.Llave,
			Estado:   p.Estado,
			Monto:    p.Monto,
			Envio:    p.Envio,
			TipoPago: strings.ToUpper(tipo),
			Hora:     p.Fecha.Format("15:04"),
		})
	}
	return out
}
