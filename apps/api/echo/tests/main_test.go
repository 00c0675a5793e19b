package tests

import (
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/finance"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	gatewaysvc "github.com/trezcool/shule/services/gateway"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/inmem"
)

var (
	conf *core.Config
	db   *inmem.DB
	app  echoapi.Server

	usrRepo     user.Repository
	studentRepo school.StudentRepository
	classRepo   school.ClassRepository
	postRepo    school.PostRepository
	paymentRepo payment.Repository
	financeRepo finance.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Shule",

		SecretKey:                 []byte("secret"),
		DefaultFromEmail:          "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Gateway: core.GatewayConfig{
			KeyID:     "key_test",
			KeySecret: "s3cr3t",
			Currency:  "INR",
		},
	}

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	// set up DB & repos
	db = inmem.Open()
	usrRepo = inmem.NewUserRepository(db)
	studentRepo = inmem.NewStudentRepository(db)
	classRepo = inmem.NewClassRepository(db)
	academicsRepo := inmem.NewAcademicsRepository(db)
	postRepo = inmem.NewPostRepository(db)
	financeRepo = inmem.NewFinanceRepository(db)
	paymentRepo = inmem.NewPaymentRepository(db, financeRepo)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	schoolSvc := school.NewService(studentRepo, classRepo, academicsRepo, postRepo)
	financeSvc := finance.NewService(financeRepo)
	paymentSvc := payment.NewService(paymentRepo, studentRepo, usrRepo, gatewaysvc.NewDummyService(), mailSvc, conf, logger)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	payment.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// set up server
	app = echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			SchoolSvc:      schoolSvc,
			PaymentSvc:     paymentSvc,
			FinanceSvc:     financeSvc,
		},
	)

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	emailsvc.SentMessages = nil
}
