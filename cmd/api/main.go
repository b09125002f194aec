package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go-lims-ws/internal/handler"
	"go-lims-ws/internal/middleware"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/internal/service"
	"go-lims-ws/internal/ws"
	"go-lims-ws/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup Database
	db := database.ConnectDB()
	// Auto Migrate (use a dedicated migration tool for production)
	db.AutoMigrate(
		&model.User{}, &model.Privilege{}, &model.Role{},
		&model.Product{}, &model.ProductTestSpecification{},
		&model.Lot{}, &model.TestResult{},
		&model.COARelease{}, &model.EmailHistory{},
		&model.RetestRequest{}, &model.RetestItem{},
		&model.AuditLog{},
	)

	// 3. Seed default privileges, roles, and admin user
	seedPrivilegesRolesAndAdmin(db)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	productRepo := repository.NewProductRepo(db)
	lotRepo := repository.NewLotRepo(db)
	resultRepo := repository.NewTestResultRepo(db)
	releaseRepo := repository.NewReleaseRepo(db)
	retestRepo := repository.NewRetestRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	auditService := service.NewAuditService(auditRepo, lotRepo, resultRepo, releaseRepo)
	statusEngine := service.NewLotStatusEngine(resultRepo, service.NewDefaultStatusPolicy(), auditService, wsHub)
	retestService := service.NewRetestService(retestRepo, lotRepo, resultRepo, auditService, db)
	lotService := service.NewLotService(lotRepo, productRepo, releaseRepo, statusEngine, auditService, db)
	resultService := service.NewTestResultService(resultRepo, lotRepo, productRepo, statusEngine, retestService, auditService, db)
	releaseService := service.NewReleaseService(releaseRepo, lotRepo, statusEngine, auditService, db)
	productService := service.NewProductService(productRepo, auditService, db)
	dashService := service.NewDashboardService(lotRepo, releaseRepo, auditService)
	authService := service.NewAuthService(userRepo, wsHub)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	lotHandler := handler.NewLotHandler(lotService, auditService)
	resultHandler := handler.NewTestResultHandler(resultService)
	releaseHandler := handler.NewReleaseHandler(releaseService)
	retestHandler := handler.NewRetestHandler(retestService)
	productHandler := handler.NewProductHandler(productService)
	auditHandler := handler.NewAuditHandler(auditService)
	dashHandler := handler.NewDashboardHandler(dashService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleRepo)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "LabTrace LIMS v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	// Auth Routes (No authentication required)
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", middleware.RequireAuth(userRepo), authHandler.Heartbeat) // Heartbeat uses Auth but available to all authenticated

	// ============ PROTECTED ROUTES ============
	// All routes below require authentication
	protected := api.Group("", middleware.RequireAuth(userRepo))

	// Dashboard Routes
	protected.Get("/dashboard/stats", middleware.RequirePrivilege("dashboard:view"), dashHandler.GetDashboardStats)
	protected.Get("/dashboard/activity", middleware.RequirePrivilege("dashboard:view"), dashHandler.GetRecentActivity)

	// Product Routes (reference data)
	protected.Get("/products", middleware.RequirePrivilege("product:view"), productHandler.GetProducts)
	protected.Get("/products/:id", middleware.RequirePrivilege("product:view"), productHandler.GetProduct)
	protected.Post("/products", middleware.RequirePrivilege("product:create"), productHandler.CreateProduct)
	protected.Post("/products/:id/specifications", middleware.RequirePrivilege("product:update"), productHandler.AddSpecification)

	// Lot Routes
	protected.Get("/lots", middleware.RequirePrivilege("lot:view"), lotHandler.GetLots)
	protected.Get("/lots/:id", middleware.RequirePrivilege("lot:view"), lotHandler.GetLot)
	protected.Post("/lots", middleware.RequirePrivilege("lot:create"), lotHandler.CreateLot)
	protected.Patch("/lots/:id/status", middleware.RequirePrivilege("lot:update"), lotHandler.UpdateStatus)
	protected.Delete("/lots/:id", middleware.RequirePrivilege("lot:delete"), lotHandler.DeleteLot)
	protected.Get("/lots/:id/history", middleware.RequirePrivilege("audit:view"), lotHandler.GetHistory)
	protected.Get("/lots/:id/results", middleware.RequirePrivilege("result:view"), resultHandler.GetResultsByLot)
	protected.Get("/lots/:id/releases", middleware.RequirePrivilege("release:view"), releaseHandler.GetReleasesByLot)
	protected.Get("/lots/:id/retests", middleware.RequirePrivilege("retest:view"), retestHandler.GetRetestsByLot)

	// Test Result Routes
	protected.Post("/results", middleware.RequirePrivilege("result:create"), resultHandler.CreateResult)
	protected.Patch("/results/:id", middleware.RequirePrivilege("result:update"), resultHandler.UpdateResult)
	protected.Post("/results/bulk-approve", middleware.RequirePrivilege("result:approve"), resultHandler.BulkApprove)
	protected.Post("/results/:id/approve", middleware.RequirePrivilege("result:approve"), resultHandler.ApproveResult)
	protected.Post("/results/:id/revert", middleware.RequirePrivilege("result:approve"), resultHandler.RevertResult)
	protected.Delete("/results/:id", middleware.RequirePrivilege("result:delete"), resultHandler.DeleteResult)

	// COA Release Routes
	protected.Get("/releases", middleware.RequirePrivilege("release:view"), releaseHandler.GetAwaiting)
	protected.Get("/releases/:id", middleware.RequirePrivilege("release:view"), releaseHandler.GetRelease)
	protected.Post("/releases/:id/approve", middleware.RequirePrivilege("release:approve"), releaseHandler.ApproveRelease)
	protected.Post("/releases/:id/send-back", middleware.RequirePrivilege("release:send_back"), releaseHandler.SendBack)
	protected.Put("/releases/:id/draft", middleware.RequirePrivilege("release:view"), releaseHandler.SaveDraft)
	protected.Put("/releases/:id/document", middleware.RequirePrivilege("release:approve"), releaseHandler.AttachDocument)
	protected.Post("/releases/:id/email", middleware.RequirePrivilege("release:approve"), releaseHandler.SendEmail)

	// Retest Routes
	protected.Post("/retests", middleware.RequirePrivilege("retest:create"), retestHandler.CreateRetest)
	protected.Get("/retests/:id", middleware.RequirePrivilege("retest:view"), retestHandler.GetRetest)
	protected.Post("/retests/:id/complete", middleware.RequirePrivilege("retest:complete"), retestHandler.CompleteRetest)

	// Audit Trail Routes
	protected.Get("/audit/recent", middleware.RequirePrivilege("audit:view"), auditHandler.GetRecent)
	protected.Get("/audit/:table/:id", middleware.RequirePrivilege("audit:view"), auditHandler.GetHistory)

	// User Management Routes
	protected.Get("/users", userHandler.GetUsers)
	protected.Get("/users/:id", userHandler.GetUser)
	protected.Post("/users", middleware.RequirePrivilege("user:create"), userHandler.CreateUser)
	protected.Put("/users/:id", middleware.RequirePrivilege("user:update"), userHandler.UpdateUser)
	protected.Delete("/users/:id", middleware.RequirePrivilege("user:delete"), userHandler.DeleteUser)
	protected.Put("/users/:id/privileges", middleware.RequirePrivilege("user:update_privilege"), userHandler.UpdateUserPrivileges)

	// Role Routes
	protected.Get("/roles", roleHandler.GetRoles)

	// Privileges Route (list all available privileges)
	protected.Get("/privileges", func(c *fiber.Ctx) error {
		privileges, err := privilegeRepo.FindAll()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch privileges"})
		}
		return c.JSON(privileges)
	})

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and admin user if they don't exist
func seedPrivilegesRolesAndAdmin(db *gorm.DB) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(); err != nil {
		log.Printf("Warning: Failed to seed privileges: %v", err)
	}

	// 2. Seed roles
	if err := roleRepo.SeedDefaults(); err != nil {
		log.Printf("Warning: Failed to seed roles: %v", err)
	}

	// 3. Assign privileges to roles
	allPrivileges, _ := privilegeRepo.FindAll()

	// ADMIN gets ALL privileges
	adminRole, err := roleRepo.FindByCode(model.RoleAdmin)
	if err == nil && len(adminRole.Privileges) == 0 {
		db.Model(&adminRole).Association("Privileges").Replace(allPrivileges)
		log.Println("✅ ADMIN role assigned all privileges")
	}

	// QC_MANAGER gets everything except user management
	qcRole, err := roleRepo.FindByCode(model.RoleQCManager)
	if err == nil && len(qcRole.Privileges) == 0 {
		qcPrivileges := []model.Privilege{}
		for _, p := range allPrivileges {
			if p.Code != "user:create" && p.Code != "user:update" && p.Code != "user:delete" && p.Code != "user:update_privilege" {
				qcPrivileges = append(qcPrivileges, p)
			}
		}
		db.Model(&qcRole).Association("Privileges").Replace(qcPrivileges)
		log.Println("✅ QC_MANAGER role assigned workflow privileges")
	}

	// LAB_TECH records and edits draft results, never approves or releases
	techRole, err := roleRepo.FindByCode(model.RoleLabTech)
	if err == nil && len(techRole.Privileges) == 0 {
		techCodes := map[string]bool{
			"product:view": true,
			"lot:view":     true, "lot:create": true, "lot:update": true,
			"result:view": true, "result:create": true, "result:update": true,
			"release:view": true, "retest:view": true,
			"audit:view": true, "dashboard:view": true,
		}
		techPrivileges := []model.Privilege{}
		for _, p := range allPrivileges {
			if techCodes[p.Code] {
				techPrivileges = append(techPrivileges, p)
			}
		}
		db.Model(&techRole).Association("Privileges").Replace(techPrivileges)
		log.Println("✅ LAB_TECH role assigned recording privileges")
	}

	// READ_ONLY gets the view privileges only
	roRole, err := roleRepo.FindByCode(model.RoleReadOnly)
	if err == nil && len(roRole.Privileges) == 0 {
		roPrivileges := []model.Privilege{}
		for _, p := range allPrivileges {
			if strings.HasSuffix(p.Code, ":view") {
				roPrivileges = append(roPrivileges, p)
			}
		}
		db.Model(&roRole).Association("Privileges").Replace(roPrivileges)
		log.Println("✅ READ_ONLY role assigned view privileges")
	}

	// 4. Create default admin user with ADMIN role
	_, err = userRepo.FindByEmail("admin@example.com")
	if err != nil {
		adminRole, _ := roleRepo.FindByCode(model.RoleAdmin)

		admin := &model.User{
			Email:       "admin@example.com",
			FullName:    "System Administrator",
			PhoneNumber: "",
			RoleID:      &adminRole.ID,
			IsActive:    true,
			Privileges:  adminRole.Privileges,
		}
		admin.CreatedBy = "system"
		admin.UpdatedBy = "system"

		if err := admin.SetPassword("admin123"); err != nil {
			log.Printf("Warning: Failed to hash admin password: %v", err)
			return
		}

		if err := userRepo.Create(admin); err != nil {
			log.Printf("Warning: Failed to create admin user: %v", err)
		} else {
			log.Println("✅ Admin user created: admin@example.com / admin123 (ADMIN)")
		}
	}
}
