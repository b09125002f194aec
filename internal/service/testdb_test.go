package service

import (
	"fmt"
	"strings"
	"testing"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/internal/ws"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// qcActor and techActor cover both sides of the authorization policy
var (
	qcActor   = authz.Actor{ID: "qc-1", Name: "QC Manager", Email: "qc@lab.test", RoleCode: model.RoleQCManager}
	techActor = authz.Actor{ID: "tech-1", Name: "Lab Tech", Email: "tech@lab.test", RoleCode: model.RoleLabTech}
)

type testEnv struct {
	db  *gorm.DB
	hub *ws.Hub

	audit    AuditService
	engine   *LotStatusEngine
	lots     LotService
	results  TestResultService
	retests  RetestService
	releases ReleaseService
	products ProductService

	lotRepo     repository.LotRepository
	resultRepo  repository.TestResultRepository
	releaseRepo repository.ReleaseRepository
	retestRepo  repository.RetestRepository
	auditRepo   repository.AuditRepository
	productRepo repository.ProductRepository
}

// newTestEnv builds the full service graph on an in-memory database. Each
// test gets its own database, named after the test so parallel runs never
// share state.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// A single connection keeps the shared in-memory database alive and
	// avoids cross-connection table locking
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&model.User{}, &model.Privilege{}, &model.Role{},
		&model.Product{}, &model.ProductTestSpecification{},
		&model.Lot{}, &model.TestResult{},
		&model.COARelease{}, &model.EmailHistory{},
		&model.RetestRequest{}, &model.RetestItem{},
		&model.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	lotRepo := repository.NewLotRepo(db)
	resultRepo := repository.NewTestResultRepo(db)
	releaseRepo := repository.NewReleaseRepo(db)
	retestRepo := repository.NewRetestRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	productRepo := repository.NewProductRepo(db)

	hub := ws.NewHub()
	audit := NewAuditService(auditRepo, lotRepo, resultRepo, releaseRepo)
	engine := NewLotStatusEngine(resultRepo, NewDefaultStatusPolicy(), audit, hub)
	retests := NewRetestService(retestRepo, lotRepo, resultRepo, audit, db)

	return &testEnv{
		db:          db,
		hub:         hub,
		audit:       audit,
		engine:      engine,
		lots:        NewLotService(lotRepo, productRepo, releaseRepo, engine, audit, db),
		results:     NewTestResultService(resultRepo, lotRepo, productRepo, engine, retests, audit, db),
		retests:     retests,
		releases:    NewReleaseService(releaseRepo, lotRepo, engine, audit, db),
		products:    NewProductService(productRepo, audit, db),
		lotRepo:     lotRepo,
		resultRepo:  resultRepo,
		releaseRepo: releaseRepo,
		retestRepo:  retestRepo,
		auditRepo:   auditRepo,
		productRepo: productRepo,
	}
}

// mustCreateProduct seeds a product with optional required acceptance rules,
// given as testType -> specification pairs.
func mustCreateProduct(t *testing.T, env *testEnv, code string, specs map[string]string) *model.Product {
	t.Helper()

	req := &CreateProductRequest{Code: code, Name: "Product " + code, CustomerName: "Acme Foods"}
	for testType, spec := range specs {
		req.Specifications = append(req.Specifications, AddSpecificationRequest{
			TestType:      testType,
			Specification: spec,
		})
	}
	product, err := env.products.CreateProduct(req, qcActor.ID)
	if err != nil {
		t.Fatalf("create product %s: %v", code, err)
	}
	return product
}

func mustCreateLot(t *testing.T, env *testEnv, lotNumber string, productIDs ...uuid.UUID) *model.Lot {
	t.Helper()

	lot, err := env.lots.CreateLot(&CreateLotRequest{
		LotNumber:       lotNumber,
		ReferenceNumber: "REF-" + lotNumber,
		LotType:         model.LotTypeStandard,
		ProductIDs:      productIDs,
	}, techActor)
	if err != nil {
		t.Fatalf("create lot %s: %v", lotNumber, err)
	}
	return lot
}

func mustCreateResult(t *testing.T, env *testEnv, lotID uuid.UUID, testType, value, spec string) *model.TestResult {
	t.Helper()

	result, err := env.results.CreateResult(&CreateResultRequest{
		LotID:         lotID,
		TestType:      testType,
		ResultValue:   value,
		Specification: spec,
	}, techActor)
	if err != nil {
		t.Fatalf("create result %s: %v", testType, err)
	}
	return result
}

func reloadLot(t *testing.T, env *testEnv, id uuid.UUID) *model.Lot {
	t.Helper()

	lot, err := env.lotRepo.FindByID(id)
	if err != nil {
		t.Fatalf("reload lot: %v", err)
	}
	return lot
}

func auditEntries(t *testing.T, env *testEnv, tableName string, recordID uuid.UUID) []model.AuditLog {
	t.Helper()

	entries, err := env.auditRepo.FindByRecord(tableName, recordID, 0, 100)
	if err != nil {
		t.Fatalf("load audit entries: %v", err)
	}
	return entries
}
