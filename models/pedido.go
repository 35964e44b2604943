package models

import "time"

// Estado values a Pedido can hold.
const (
	EstadoPendiente  = "Pendiente"
	EstadoValidado   = "Validado"
	EstadoRechazado  = "Rechazado"
	EstadoCancelado  = "Cancelado"
	EstadoReservado  = "Reservado"
	EstadoNoValidado = "No Validado"
)

// Sentinel Foto values for the two non-photo payment methods.
const (
	FotoEfectivo = "PAGO-EFECTIVO"
	FotoOnline   = "PAGO-ONLINE"
)

// TipoPago values accepted at validation time.
const (
	TipoFoto     = "FOTO"
	TipoEfectivo = "EFECTIVO"
	TipoOnline   = "ONLINE"
)

// Pedido is one order. Monto is the registered amount set at creation and
// never touched by validation; MontoFoto is the candidate amount proposed
// as proof of payment (extracted or entered), nil until validation starts.
type Pedido struct {
	ID        uint `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Nro       int       `gorm:"uniqueIndex;not null" json:"nro"`
	Fecha     time.Time `gorm:"index;not null" json:"fecha"`
	Llave     string    `gorm:"size:64;not null" json:"llave"`
	Monto     float64   `gorm:"not null" json:"monto"`
	Estado    string    `gorm:"size:32;not null;default:Pendiente;index" json:"estado"`
	// Foto holds the stored receipt path, or FotoEfectivo/FotoOnline for
	// non-photo payments, or "" while unvalidated.
	Foto              string   `gorm:"size:512" json:"foto"`
	MontoFoto         *float64 `json:"monto_foto"`
	TipoPago          string   `gorm:"size:16" json:"tipo_pago"`
	Envio             string   `gorm:"size:128;index" json:"envio"`
	MotivoCancelacion string   `gorm:"size:255" json:"motivo_cancelacion"`
	ValidadoPor       string   `gorm:"size:128" json:"validado_por"`
	SlaFuera          string   `gorm:"size:32" json:"sla_fuera"`
	CreadoPor         string   `gorm:"size:128" json:"creado_por"`
}
