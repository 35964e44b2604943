package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pedidos/models"
	"pedidos/pkg/importer"
	"pedidos/pkg/ocr"
	"pedidos/pkg/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxUploadBytes = 5 * 1024 * 1024

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.GET("/pedidos", listPedidosHandler)
	authGroup.GET("/pedidos/stats", statsHandler)
	authGroup.GET("/pedidos/:nro", getPedidoHandler)

	adminGroup := authGroup.Group("")
	adminGroup.Use(requireAdmin())
	adminGroup.POST("/pedidos", crearPedidoHandler)
	adminGroup.POST("/pedidos/import", importPedidosHandler)
	adminGroup.POST("/pedidos/:nro/validar", validarPedidoHandler)
	adminGroup.POST("/pedidos/:nro/rechazar", rechazarPedidoHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

// requireAdmin gates mutating order endpoints; everyone else is read-only.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != "Admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "solo lectura: se requiere rol Admin"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	role, _ := c.Get("role")
	c.JSON(http.StatusOK, gin.H{"username": usernameVal, "role": role})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Nombre   string `json:"nombre"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password, req.Nombre); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"nombre":   user.Nombre,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken, "user": gin.H{"username": user.Username, "nombre": user.Nombre, "rol": roleName}})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"nombre":   user.Nombre,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate: revoke existing and create a new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// --- Pedidos ---

func listPedidosHandler(c *gin.Context) {
	q := db.Model(&models.Pedido{})
	if estado := c.Query("estado"); estado != "" {
		if estado == models.EstadoRechazado {
			// the rejected tab also shows orders that failed validation
			q = q.Where("estado IN ?", []string{models.EstadoRechazado, models.EstadoNoValidado})
		} else {
			q = q.Where("estado = ?", estado)
		}
	}
	if fecha := c.Query("fecha"); fecha != "" {
		day, err := time.Parse("2006-01-02", fecha)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha inválida (YYYY-MM-DD)"})
			return
		}
		q = q.Where("fecha >= ? AND fecha < ?", day, day.AddDate(0, 0, 1))
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		like := "%" + strings.ToUpper(term) + "%"
		q = q.Where("UPPER(llave) LIKE ? OR CAST(nro AS TEXT) LIKE ? OR UPPER(estado) LIKE ?", like, "%"+term+"%", like)
	}
	var items []models.Pedido
	if err := q.Order("nro desc").Limit(500).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func getPedidoHandler(c *gin.Context) {
	nro, err := strconv.Atoi(c.Param("nro"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nro inválido"})
		return
	}
	var p models.Pedido
	if err := db.Where("nro = ?", nro).First(&p).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pedido no encontrado"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func crearPedidoHandler(c *gin.Context) {
	username, _ := c.Get("username")
	var req struct {
		Nro   int     `json:"nro" binding:"required"`
		Fecha string  `json:"fecha"`
		Llave string  `json:"llave" binding:"required"`
		Monto float64 `json:"monto" binding:"required"`
		Envio string  `json:"envio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Monto <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "monto debe ser mayor a 0"})
		return
	}
	fecha := time.Now()
	if req.Fecha != "" {
		t, err := time.Parse("2006-01-02", req.Fecha)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha inválida (YYYY-MM-DD)"})
			return
		}
		fecha = t
	}
	llave := strings.ToUpper(strings.TrimSpace(req.Llave))

	var existing models.Pedido
	if err := db.Where("nro = ?", req.Nro).First(&existing).Error; err == nil {
		if existing.Estado != models.EstadoReservado {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("el pedido #%d ya existe", req.Nro)})
			return
		}
		// reserved slot: claim it
		existing.Fecha = fecha
		existing.Llave = llave
		existing.Monto = req.Monto
		existing.Envio = req.Envio
		existing.Estado = models.EstadoPendiente
		existing.CreadoPor = username.(string)
		if err := db.Save(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"nro": existing.Nro, "estado": existing.Estado})
		return
	}

	p := models.Pedido{
		Nro:       req.Nro,
		Fecha:     fecha,
		Llave:     llave,
		Monto:     req.Monto,
		Envio:     req.Envio,
		Estado:    models.EstadoPendiente,
		CreadoPor: username.(string),
	}
	if err := db.Create(&p).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("el pedido #%d ya existe", req.Nro)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nro": p.Nro, "estado": p.Estado})
}

// importPedidosHandler bulk-creates orders from CSV or pasted text. Accepts
// either a JSON body {"text": "..."} or a raw text/plain body.
func importPedidosHandler(c *gin.Context) {
	username, _ := c.Get("username")
	var text string
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		text = req.Text
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
			return
		}
		text = string(body)
	}

	rows, lineErrs := importer.Parse(text)
	created := 0
	skipped := 0
	var errStrs []string
	for _, e := range lineErrs {
		errStrs = append(errStrs, e.String())
	}
	for _, row := range rows {
		var existing models.Pedido
		if err := db.Where("nro = ?", row.Nro).First(&existing).Error; err == nil {
			skipped++
			continue
		}
		p := models.Pedido{
			Nro:       row.Nro,
			Fecha:     row.Fecha,
			Llave:     row.Llave,
			Monto:     row.Monto,
			Envio:     row.Envio,
			Estado:    models.EstadoPendiente,
			CreadoPor: username.(string),
		}
		if err := db.Create(&p).Error; err != nil {
			skipped++
			continue
		}
		created++
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": skipped, "errors": errStrs})
}

// validarPedidoHandler records a payment validation. Multipart form fields:
// tipo (FOTO|EFECTIVO|ONLINE, default FOTO), monto_foto (optional manual
// amount) and file (receipt image, FOTO only). When a photo arrives without
// a manual amount the OCR pipeline proposes one; classification against the
// registered amount decides the resulting estado.
func validarPedidoHandler(c *gin.Context) {
	username, _ := c.Get("username")
	nro, err := strconv.Atoi(c.Param("nro"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nro inválido"})
		return
	}
	var pedido models.Pedido
	if err := db.Where("nro = ?", nro).First(&pedido).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pedido no encontrado"})
		return
	}
	if pedido.Estado == models.EstadoRechazado || pedido.Estado == models.EstadoCancelado {
		c.JSON(http.StatusConflict, gin.H{"error": "pedido rechazado/cancelado: bloqueado"})
		return
	}

	tipo := strings.ToUpper(strings.TrimSpace(c.PostForm("tipo")))
	if tipo == "" {
		tipo = models.TipoFoto
	}
	if tipo != models.TipoFoto && tipo != models.TipoEfectivo && tipo != models.TipoOnline {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tipo debe ser FOTO, EFECTIVO u ONLINE"})
		return
	}

	var candidate float64
	candidateSet := false
	if v := strings.TrimSpace(c.PostForm("monto_foto")); v != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil || f < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "monto_foto inválido"})
			return
		}
		candidate = f
		candidateSet = true
	}

	warning := ""
	switch tipo {
	case models.TipoEfectivo, models.TipoOnline:
		// no photo for these modes; suggest the registered amount when the
		// operator did not override it
		if !candidateSet {
			candidate = reconcile.SuggestCandidate(tipo, pedido.Monto)
			candidateSet = candidate > 0
		}
		if tipo == models.TipoEfectivo {
			pedido.Foto = models.FotoEfectivo
		} else {
			pedido.Foto = models.FotoOnline
		}
	case models.TipoFoto:
		file, ferr := c.FormFile("file")
		if ferr != nil {
			if pedido.Foto == "" || pedido.Foto == models.FotoEfectivo || pedido.Foto == models.FotoOnline {
				c.JSON(http.StatusBadRequest, gin.H{"error": "debe subir una foto para validar"})
				return
			}
			// keep the existing photo; only the amount changes
			break
		}
		if file.Size > maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "archivo muy grande (máx 5MB)"})
			return
		}
		ct := file.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "image/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "solo se permiten imágenes (JPG, PNG)"})
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if ext == "" {
			ext = ".jpg"
		}
		name := fmt.Sprintf("pedido_%d_%s%s", nro, uuid.NewString(), ext)
		dir := filepath.Join(uploadBaseDir(), "recibos")
		if err := os.MkdirAll(dir, 0755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
			return
		}
		fullPath := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(file, fullPath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		up := models.Upload{FileName: name, StorePath: "public/recibos/" + name, ContentType: ct, PedidoID: &pedido.ID}
		if err := db.Create(&up).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
		pedido.Foto = up.StorePath

		if !candidateSet {
			res, scanErr := receiptPipeline.Scan(fullPath)
			switch {
			case errors.Is(scanErr, ocr.ErrDecode):
				up.Failed = true
				up.FailedReason = scanErr.Error()
				db.Save(&up)
				c.JSON(http.StatusBadRequest, gin.H{"error": "la imagen no se puede leer"})
				return
			case scanErr != nil:
				// engine failure: leave the amount blank for manual entry
				up.Failed = true
				up.FailedReason = scanErr.Error()
				db.Save(&up)
				warning = "no se pudo leer la imagen; ingrese el monto manualmente"
			case res.Found:
				candidate = res.Amount
				candidateSet = true
				up.MontoDetectado = &res.Amount
				db.Save(&up)
			default:
				warning = "no se detectó el monto automáticamente; ingréselo manual"
			}
		}
	}

	state := reconcile.Pending
	if candidateSet {
		state = reconcile.Classify(pedido.Monto, candidate)
		pedido.MontoFoto = &candidate
	}
	pedido.TipoPago = tipo
	pedido.ValidadoPor = username.(string)
	switch state {
	case reconcile.Matched:
		pedido.Estado = models.EstadoValidado
	case reconcile.Mismatched:
		pedido.Estado = models.EstadoNoValidado
	}
	if err := db.Save(&pedido).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	resp := gin.H{
		"nro":        pedido.Nro,
		"estado":     pedido.Estado,
		"monto_foto": reconcile.FormatAmount(candidate, candidateSet),
		"validacion": state.String(),
	}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

func rechazarPedidoHandler(c *gin.Context) {
	username, _ := c.Get("username")
	nro, err := strconv.Atoi(c.Param("nro"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nro inválido"})
		return
	}
	var pedido models.Pedido
	if err := db.Where("nro = ?", nro).First(&pedido).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pedido no encontrado"})
		return
	}
	if pedido.Estado == models.EstadoValidado {
		c.JSON(http.StatusConflict, gin.H{"error": "pedido ya validado"})
		return
	}
	var req struct {
		Motivo string `json:"motivo"`
	}
	_ = c.ShouldBindJSON(&req) // motivo is optional
	pedido.Estado = models.EstadoRechazado
	pedido.MotivoCancelacion = req.Motivo
	pedido.ValidadoPor = username.(string)
	if err := db.Save(&pedido).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nro": pedido.Nro, "estado": pedido.Estado})
}
