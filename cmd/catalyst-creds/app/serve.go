package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/catalyst-dev/catalyst-creds/api/v1alpha1"
	"github.com/catalyst-dev/catalyst-creds/pkg/api"
	"github.com/catalyst-dev/catalyst-creds/pkg/audit"
	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/githubapp"
	"github.com/catalyst-dev/catalyst-creds/pkg/issuer"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage/sqlite"
	"github.com/catalyst-dev/catalyst-creds/pkg/telemetry"
	"github.com/catalyst-dev/catalyst-creds/pkg/tenant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the credential service",
	Long: `Start the credential service. The server validates pod bearer tokens
against the cluster, resolves scoped secrets and issues short-lived GitHub
tokens to namespace-bound workloads.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second
	serverIdleTimeout      = 60 * time.Second

	// staticTokenEnvVar holds the development fallback token. It is read
	// from the environment rather than a flag so the value never appears
	// in process listings.
	staticTokenEnvVar = "CATALYST_GITHUB_STATIC_TOKEN"
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("db-path", "/var/lib/catalyst-creds/creds.db", "Path to the SQLite database")
	serveCmd.Flags().String("github-app-id", "", "GitHub App id used to mint installation tokens")
	serveCmd.Flags().String("github-app-private-key", "", "Path to the GitHub App private key (PEM)")
	serveCmd.Flags().String("github-api-url", githubapp.DefaultBaseURL, "GitHub API base URL")
	serveCmd.Flags().Duration("binding-cache-ttl", tenant.DefaultCacheTTL, "How long namespace bindings are cached")
	serveCmd.Flags().Bool("enable-static-token-fallback", false,
		"Allow projects bound to the \"pat\" sentinel to receive the statically configured token (development only)")

	for _, flag := range []string{
		"address", "db-path", "github-app-id", "github-app-private-key",
		"github-api-url", "binding-cache-ttl", "enable-static-token-fallback",
	} {
		if err := viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", flag, err)
		}
	}
}

// getKubernetesConfig returns a Kubernetes REST config, preferring the
// in-cluster environment and falling back to the local kubeconfig.
func getKubernetesConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	return kubeConfig.ClientConfig()
}

func newScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

// noMinter rejects every mint request. It stands in when no GitHub App is
// configured and only the static fallback is in use.
type noMinter struct{}

func (noMinter) MintInstallationToken(context.Context, string) (githubapp.Token, error) {
	return githubapp.Token{}, fmt.Errorf("no GitHub App configured")
}

func newMinter() (issuer.TokenMinter, error) {
	appID := viper.GetString("github-app-id")
	keyPath := viper.GetString("github-app-private-key")

	if appID == "" {
		if !viper.GetBool("enable-static-token-fallback") {
			return nil, fmt.Errorf("github-app-id is required unless the static token fallback is enabled")
		}
		logger.Warn("No GitHub App configured; only static-token projects can receive git tokens")
		return noMinter{}, nil
	}

	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 -- path comes from the operator's own flag
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub App private key: %w", err)
	}

	return githubapp.NewMinter(appID, keyPEM, githubapp.WithBaseURL(viper.GetString("github-api-url")))
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	ctrllog.SetLogger(logger.NewLogr())

	// The encryption key is non-negotiable; refuse to start without it.
	cipher, err := aes.NewCipherFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}

	db, err := sqlite.Open(ctx, viper.GetString("db-path"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	config, err := getKubernetesConfig()
	if err != nil {
		return fmt.Errorf("failed to create kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	scheme, err := newScheme()
	if err != nil {
		return fmt.Errorf("failed to build scheme: %w", err)
	}
	ctrl, err := ctrlclient.New(config, ctrlclient.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("failed to create controller client: %w", err)
	}

	minter, err := newMinter()
	if err != nil {
		return err
	}

	staticToken := issuer.StaticTokenConfig{
		Enabled: viper.GetBool("enable-static-token-fallback"),
		Token:   os.Getenv(staticTokenEnvVar),
	}
	if staticToken.Enabled {
		logger.Warn("Static token fallback is enabled; this is a development-only setting")
	}

	auditor := audit.NewAuditor(logger.Get(), "catalyst-creds")
	store := sqlite.NewSecretStore(db)
	service := secrets.NewService(store, cipher, auditor)
	resolver := secrets.NewResolver(store, cipher, logger.Get())
	binder := tenant.NewBinder(ctrl, tenant.WithCacheTTL(viper.GetDuration("binding-cache-ttl")))
	directory := sqlite.NewEnvironmentDirectory(db)

	creds := issuer.New(binder, minter, directory, resolver, auditor, staticToken)

	router := api.NewRouter(api.RouterConfig{
		Validator: auth.NewValidator(clientset),
		Issuer:    creds,
		Secrets:   service,
		Health:    db.DB(),
		Metrics:   telemetry.NewMetrics(),
	})

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
