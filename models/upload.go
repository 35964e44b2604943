package models

import "time"

// Upload is a stored receipt image tied to a Pedido. Failed scans keep
// their row so an admin can review them instead of re-uploading blindly.
type Upload struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string `gorm:"size:255;not null"`
	StorePath   string `gorm:"column:store_path;size:512"`
	ContentType string `gorm:"size:128"`
	PedidoID    *uint  `gorm:"index"`
	Pedido      *Pedido `gorm:"foreignKey:PedidoID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	// OCR outcome for diagnostics; MontoDetectado is nil when no amount
	// was found.
	MontoDetectado *float64
	Failed         bool   `gorm:"default:false;index"`
	FailedReason   string `gorm:"size:255"`
}
