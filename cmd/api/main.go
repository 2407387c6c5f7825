package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolattend/internal/auth"
	"schoolattend/internal/config"
	"schoolattend/internal/httpmiddleware"
	"schoolattend/internal/ledger"
	"schoolattend/internal/queue"
	"schoolattend/internal/registry"
	"schoolattend/internal/report"
	"schoolattend/internal/scan"
	"schoolattend/internal/session"
	"schoolattend/internal/store"
)

var scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "schoolattend_scans_total",
	Help: "Scan outcomes by result.",
}, []string{"result"})

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	snapshots := store.NewSnapshotStore(redisClient)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "schoolattend:marks")
	}

	led := ledger.New(cfg.TotalSchoolDays)
	reg := registry.New(led, cfg.DefaultTeacherPassword)
	scanner := scan.NewResolver(reg)
	sessions := session.NewResolver(reg, session.Config{
		AdminName:     cfg.AdminName,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		StudentSecret: cfg.StudentSecret,
	})

	var archive *store.Archive
	if db != nil {
		archive = store.NewArchive(db.Client)
	}

	ctx := context.Background()

	// Restore the last snapshot so a restart does not lose the roster.
	if snap, err := snapshots.Load(ctx); err == nil {
		reg.Load(snap.Students, snap.Teachers)
		led.Load(snap.Records)
		log.Printf("snapshot restored: %d students, %d teachers, %d records",
			len(snap.Students), len(snap.Teachers), len(snap.Records))
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		log.Printf("warning: snapshot load failed: %v", err)
	}

	// Persistence is fire-and-forget from the core's point of view.
	persist := func() {
		go func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			snap := store.Snapshot{
				Students: reg.Students(),
				Teachers: reg.Teachers(),
				Records:  led.Records(),
			}
			if err := snapshots.Save(saveCtx, snap); err != nil {
				log.Printf("snapshot save failed: %v", err)
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Role     string `json:"role" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := sessions.Login(session.Role(req.Role), req.Email, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, exp, err := auth.Issue(user.ID, user.Name, user.Email, string(user.Role), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"expires_at":   exp.Unix(),
			"user":         user,
		})
	})

	admin := r.Group("/v1/admin", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "admin"))

	admin.GET("/students", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"students": reg.Students()})
	})

	admin.POST("/students", func(c *gin.Context) {
		var draft registry.StudentDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := reg.AddStudent(draft)
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusCreated, s)
	})

	admin.PUT("/students/:id", func(c *gin.Context) {
		var draft registry.StudentDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := reg.UpdateStudent(c.Param("id"), draft)
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusOK, s)
	})

	admin.DELETE("/students/:id", func(c *gin.Context) {
		s, err := reg.RemoveStudent(c.Param("id"))
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		if err := q.Publish(ctx, queue.Message{Type: queue.TypePurge, Body: []byte(s.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		persist()
		c.JSON(http.StatusOK, gin.H{"deleted": s.ID})
	})

	admin.GET("/teachers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"teachers": reg.Teachers()})
	})

	admin.POST("/teachers", func(c *gin.Context) {
		var draft registry.TeacherDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, err := reg.AddTeacher(draft)
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusCreated, t)
	})

	admin.PUT("/teachers/:id", func(c *gin.Context) {
		var draft registry.TeacherDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, err := reg.UpdateTeacher(c.Param("id"), draft)
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusOK, t)
	})

	admin.DELETE("/teachers/:id", func(c *gin.Context) {
		t, err := reg.RemoveTeacher(c.Param("id"))
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusOK, gin.H{"deleted": t.ID})
	})

	admin.PUT("/password", func(c *gin.Context) {
		var req struct {
			CurrentPassword string `json:"currentPassword" binding:"required"`
			NewPassword     string `json:"newPassword" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := sessions.ChangeAdminPassword(req.CurrentPassword, req.NewPassword); err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "password changed"})
	})

	admin.GET("/archive", func(c *gin.Context) {
		if archive == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
			return
		}
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := archive.List(c.Request.Context(), c.Query("student_id"), c.Query("date"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	staff := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "teacher", "admin"))

	staff.POST("/scan", func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		student, ok := scanner.Resolve(req.Token)
		if !ok {
			scansTotal.WithLabelValues("unknown").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found for this code"})
			return
		}

		claims := auth.ClaimsFrom(c)
		rec, admitted := led.Mark(student.ID, student.Name, claims.Email, time.Now())
		if !admitted {
			scansTotal.WithLabelValues("already_marked").Inc()
			c.JSON(http.StatusOK, gin.H{"status": "already_marked", "record": rec})
			return
		}
		scansTotal.WithLabelValues("admitted").Inc()

		body, _ := json.Marshal(rec)
		if err := q.Publish(ctx, queue.Message{Type: queue.TypeAttendance, Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		persist()

		c.JSON(http.StatusOK, gin.H{"status": "admitted", "record": rec})
	})

	staff.GET("/attendance", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = ledger.DateOf(time.Now())
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "records": led.RecordsForDate(date)})
	})

	staff.GET("/attendance/today", func(c *gin.Context) {
		date := ledger.DateOf(time.Now())
		type row struct {
			Student registry.Student `json:"student"`
			Present bool             `json:"present"`
			Time    string           `json:"time,omitempty"`
		}
		byStudent := make(map[string]ledger.Record)
		for _, rec := range led.RecordsForDate(date) {
			byStudent[rec.StudentID] = rec
		}
		var rows []row
		for _, s := range reg.Students() {
			entry := row{Student: s}
			if rec, ok := byStudent[s.ID]; ok {
				entry.Present = true
				entry.Time = rec.Time
			}
			rows = append(rows, entry)
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "students": rows})
	})

	staff.GET("/stats", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = ledger.DateOf(time.Now())
		}
		total := reg.StudentCount()
		present := len(led.RecordsForDate(date))
		c.JSON(http.StatusOK, gin.H{
			"date":            date,
			"total_students":  total,
			"present":         present,
			"attendance_rate": led.AttendanceRate(date, total),
		})
	})

	staff.GET("/students/:id/attendance", func(c *gin.Context) {
		id := c.Param("id")
		if _, err := reg.StudentByID(id); err != nil {
			writeRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"records":      led.RecordsForStudent(id),
			"present_days": led.PresentDays(id),
			"absent_days":  led.AbsentDays(id),
			"school_days":  led.SchoolDays(),
		})
	})

	staff.GET("/reports/daily.xlsx", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = ledger.DateOf(time.Now())
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, date))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := report.WriteDaily(c.Writer, date, reg.Students(), led); err != nil {
			log.Printf("report build failed: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	})

	teachers := r.Group("/v1/teachers", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "teacher"))

	teachers.PUT("/me/password", func(c *gin.Context) {
		var req struct {
			CurrentPassword string `json:"currentPassword" binding:"required"`
			NewPassword     string `json:"newPassword" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.ClaimsFrom(c)
		if err := sessions.ChangeTeacherPassword(claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
			writeSessionError(c, err)
			return
		}
		persist()
		c.JSON(http.StatusOK, gin.H{"status": "password changed"})
	})

	students := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "student"))

	students.GET("/me", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		s, err := reg.StudentByID(claims.Subject)
		if err != nil {
			writeRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"student":      s,
			"records":      led.RecordsForStudent(s.ID),
			"present_days": led.PresentDays(s.ID),
			"absent_days":  led.AbsentDays(s.ID),
			"school_days":  led.SchoolDays(),
			"marked_today": led.IsMarked(s.ID, ledger.DateOf(time.Now())),
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// writeRegistryError maps registry outcomes to HTTP statuses.
func writeRegistryError(c *gin.Context, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, registry.ErrDuplicateSchoolID):
		c.JSON(http.StatusConflict, gin.H{"error": "school id already taken", "field": "schoolId"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// writeSessionError maps password-change outcomes to HTTP statuses.
func writeSessionError(c *gin.Context, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, session.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
