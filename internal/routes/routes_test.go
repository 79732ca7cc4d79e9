package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/config"
	"github.com/rutacash/rutacash/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	_, err := Setup(app, Deps{
		Cfg:    config.Config{AppName: "RutaCash", AppEnv: "development"},
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestHealthAndPing(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK {
		t.Fatalf("healthz status %d", status)
	}

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/ping", "")
	if status != fiber.StatusOK {
		t.Fatalf("ping status %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected ping body: %v", body)
	}
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	driverID := uuid.NewString()

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/drivers/"+driverID+"/wallet", "")
	if status != fiber.StatusCreated {
		t.Fatalf("create wallet status %d: %v", status, body)
	}
	if body["currency"] != "CUP" {
		t.Fatalf("expected default CUP currency, got %v", body["currency"])
	}

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/drivers/"+driverID+"/wallet", "")
	if status != fiber.StatusConflict {
		t.Fatalf("duplicate onboarding status %d", status)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/drivers/"+driverID+"/wallet", "")
	if status != fiber.StatusOK {
		t.Fatalf("get wallet status %d", status)
	}
	if body["status"] != "active" {
		t.Fatalf("expected active wallet, got %v", body["status"])
	}

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/drivers/"+driverID+"/wallet/block",
		`{"reason":"audit","performed_by":"ops"}`)
	if status != fiber.StatusOK {
		t.Fatalf("block status %d", status)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/drivers/"+driverID+"/wallet", "")
	if status != fiber.StatusOK || body["status"] != "blocked" {
		t.Fatalf("expected blocked wallet, got %d %v", status, body)
	}
}

func TestSettlementAndCollectionOverHTTP(t *testing.T) {
	app := newTestApp(t)
	driverID := uuid.NewString()

	if status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/drivers/"+driverID+"/wallet", ""); status != fiber.StatusCreated {
		t.Fatalf("create wallet status %d", status)
	}

	// Commission for a cash trip drives the empty wallet negative and blocks it.
	commission := fmt.Sprintf(`{"driver_id":%q,"trip_id":%q,"commission_amount":"10.00","currency":"CUP","gross_amount":"60.00"}`,
		driverID, uuid.NewString())
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/settlement/commissions", commission)
	if status != fiber.StatusCreated {
		t.Fatalf("commission status %d: %v", status, body)
	}
	if body["wallet_status"] != "blocked" {
		t.Fatalf("expected blocked wallet, got %v", body["wallet_status"])
	}

	// Register a point and run a top-up through it to recover the wallet.
	status, point := doJSON(t, app, fiber.MethodPost, "/api/v1/collection-points",
		`{"name":"Habana Vieja office","address":"Calle Obispo 12"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("create point status %d", status)
	}

	start := fmt.Sprintf(`{"driver_id":%q,"collection_point_id":%q,"collected_by":%q,"amount":"25.00","currency":"CUP"}`,
		driverID, point["id"], uuid.NewString())
	status, record := doJSON(t, app, fiber.MethodPost, "/api/v1/collections", start)
	if status != fiber.StatusCreated {
		t.Fatalf("start collection status %d: %v", status, record)
	}
	if record["status"] != "PENDING" {
		t.Fatalf("expected PENDING record, got %v", record["status"])
	}

	confirmPath := fmt.Sprintf("/api/v1/collections/%s/confirm", record["id"])
	status, confirmed := doJSON(t, app, fiber.MethodPost, confirmPath, fmt.Sprintf(`{"driver_id":%q}`, driverID))
	if status != fiber.StatusOK {
		t.Fatalf("confirm status %d: %v", status, confirmed)
	}
	if confirmed["wallet_status"] != "active" {
		t.Fatalf("expected reactivated wallet, got %v", confirmed["wallet_status"])
	}
	if confirmed["wallet_balance"] != "15" {
		t.Fatalf("expected balance 15, got %v", confirmed["wallet_balance"])
	}
}
