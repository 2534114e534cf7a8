package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/givehub/donation-backend/internal/db"
	"github.com/givehub/donation-backend/internal/gateway"
	"github.com/givehub/donation-backend/internal/handlers"
	"github.com/givehub/donation-backend/internal/notify"
	"github.com/givehub/donation-backend/internal/services"
	"github.com/givehub/donation-backend/internal/store"
)

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Warnf("Error loading .env: %s", err)
	}

	logger := newLogger()

	uri := os.Getenv("MONGOURI")
	if uri == "" {
		logger.Fatal("MONGOURI environment variable not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET environment variable not set")
	}

	client, err := db.Connect(context.Background(), uri)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	logger.Info("Connected to MongoDB")

	database := client.Database("givehubdb")

	mongoStore := store.NewMongo(database)
	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoStore.EnsureIndexes(indexCtx); err != nil {
		cancel()
		logger.Fatalf("Failed to create indexes: %v", err)
	}
	cancel()

	razorpay := gateway.NewRazorpayClient(
		os.Getenv("RAZORPAY_KEY_ID"),
		os.Getenv("RAZORPAY_KEY_SECRET"),
		os.Getenv("RAZORPAY_BASE_URL"),
		logger,
	)
	mailer := notify.NewResendMailer(os.Getenv("RESEND_API_KEY"), os.Getenv("EMAIL_FROM"), logger)
	auth := handlers.NewAuth(jwtSecret)

	donationService := services.NewDonationService(mongoStore, razorpay, razorpay, mailer, logger)
	donationHandler := handlers.NewDonationHandler(donationService, auth, logger)

	userService := services.NewUserService(database)
	userHandler := handlers.NewUserHandler(userService, auth, logger)

	charityService := services.NewCharityService(database, mailer, logger)
	charityHandler := handlers.NewCharityHandler(charityService, auth, logger)

	reportService := services.NewReportService(database)
	reportHandler := handlers.NewReportHandler(reportService, auth, logger)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/auth/register", userHandler.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", userHandler.Login).Methods("POST")
	router.HandleFunc("/api/users/profile", userHandler.Profile).Methods("GET")

	router.HandleFunc("/api/auth/charity/register", charityHandler.Register).Methods("POST")
	router.HandleFunc("/api/auth/charity/login", charityHandler.Login).Methods("POST")
	router.HandleFunc("/api/charities", charityHandler.List).Methods("GET")
	router.HandleFunc("/api/charities/{charityID}", charityHandler.Get).Methods("GET")

	router.HandleFunc("/api/donations", donationHandler.Create).Methods("POST")
	router.HandleFunc("/api/donations", donationHandler.List).Methods("GET")
	router.HandleFunc("/api/donations/confirm", donationHandler.Confirm).Methods("POST")
	router.HandleFunc("/api/donations/webhook", donationHandler.Webhook).Methods("POST")
	router.HandleFunc("/api/donations/{donationID}/receipt", donationHandler.Receipt).Methods("GET")
	router.HandleFunc("/api/donations/{donationID}/refund", donationHandler.Refund).Methods("POST")

	router.HandleFunc("/api/admin/charities", charityHandler.ListPending).Methods("GET")
	router.HandleFunc("/api/admin/charities/{charityID}/approve", charityHandler.Approve).Methods("POST")
	router.HandleFunc("/api/admin/charities/{charityID}/reject", charityHandler.Reject).Methods("POST")

	router.HandleFunc("/api/impact-reports", reportHandler.Create).Methods("POST")
	router.HandleFunc("/api/impact-reports", reportHandler.List).Methods("GET")
	router.HandleFunc("/api/impact-reports/{reportID}", reportHandler.Update).Methods("PATCH")
	router.HandleFunc("/api/impact-reports/{reportID}", reportHandler.Delete).Methods("DELETE")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Server running on port %s", port)
	logger.Fatal(server.ListenAndServe())
}
