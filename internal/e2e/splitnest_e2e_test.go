package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	advanceservice "github.com/splitnest/splitnest/internal/advance/service"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	billservice "github.com/splitnest/splitnest/internal/bill/service"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	houseservice "github.com/splitnest/splitnest/internal/house/service"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	ledgerservice "github.com/splitnest/splitnest/internal/ledger/service"
	"github.com/splitnest/splitnest/internal/locking"
	"github.com/splitnest/splitnest/internal/notify"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	riskservice "github.com/splitnest/splitnest/internal/riskindex/service"
	"github.com/splitnest/splitnest/internal/server"
	"github.com/splitnest/splitnest/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	node    *snowflake.Node
	baseURL string
	httpSrv *httptest.Server
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_for_update", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_strip_for_update_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&housedomain.House{},
		&housedomain.HouseMember{},
		&billdomain.Bill{},
		&billdomain.Charge{},
		&ledgerdomain.Transaction{},
		&riskdomain.HouseStatusIndex{},
		&riskdomain.HouseRiskHistory{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{
		AppName:              "splitnest",
		Environment:          "test",
		BaseAdvanceAllowance: 10000,
	}
	keyed := locking.NewKeyedLock()
	riskCfg := config.NewStaticRiskConfigHolder(config.DefaultRiskConfig())

	houseSvc := houseservice.NewService(houseservice.ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fc,
		HouseRepo:  repository.ProvideStore[housedomain.House](db),
		MemberRepo: repository.ProvideStore[housedomain.HouseMember](db),
	})
	billSvc := billservice.NewService(billservice.ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fc,
		HouseSvc:   houseSvc,
		BillRepo:   repository.ProvideStore[billdomain.Bill](db),
		ChargeRepo: repository.ProvideStore[billdomain.Charge](db),
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
	})
	riskSvc := riskservice.NewService(riskservice.ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Notifier: notify.NoOpNotifier{},
		RiskCfg:  riskCfg,
		Keyed:    keyed,
	})
	advanceSvc := advanceservice.NewService(advanceservice.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fc,
		Cfg:    cfg,
		Risk:   riskSvc,
		Ledger: ledgerSvc,
		Keyed:  keyed,
	})

	srv := server.NewServer(server.ServerParams{
		Gin:        server.NewEngine(log),
		Cfg:        cfg,
		Log:        log,
		HouseSvc:   houseSvc,
		BillSvc:    billSvc,
		LedgerSvc:  ledgerSvc,
		RiskSvc:    riskSvc,
		AdvanceSvc: advanceSvc,
	})

	httpSrv := httptest.NewServer(srv.Engine())
	t.Cleanup(httpSrv.Close)

	return &testEnv{
		db:      db,
		clock:   fc,
		node:    node,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeInto(t *testing.T, raw []byte, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealthCheck(t *testing.T) {
	env := startEnv(t)

	status, _ := env.doJSON(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdvanceFlow(t *testing.T) {
	env := startEnv(t)

	userIDs := []string{
		env.node.Generate().String(),
		env.node.Generate().String(),
		env.node.Generate().String(),
	}

	var house housedomain.House
	status, raw := env.doJSON(t, http.MethodPost, "/api/houses", map[string]any{
		"name":            "Maple Street",
		"member_user_ids": userIDs,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	decodeInto(t, raw, &house)
	housePath := "/api/houses/" + house.ID.String()

	t.Run("allowance starts at the neutral base", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodGet, housePath+"/advance/allowance", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var out struct {
			Allowance int64 `json:"allowance"`
		}
		decodeInto(t, raw, &out)
		assert.Equal(t, int64(10000), out.Allowance)
	})

	due := env.clock.Now().AddDate(0, 0, 7)
	createBill := func(t *testing.T, amount int64) (billdomain.Bill, []billdomain.Charge) {
		t.Helper()
		status, raw := env.doJSON(t, http.MethodPost, "/api/bills", map[string]any{
			"house_id":     house.ID.String(),
			"description":  "utilities",
			"total_amount": amount,
			"due_date":     due.Format(time.RFC3339),
		})
		require.Equal(t, http.StatusCreated, status, string(raw))

		var out struct {
			Bill    billdomain.Bill     `json:"bill"`
			Charges []billdomain.Charge `json:"charges"`
		}
		decodeInto(t, raw, &out)
		return out.Bill, out.Charges
	}

	bill1, charges1 := createBill(t, 9000)
	require.Len(t, charges1, 3)

	t.Run("advancing a bill fronts every unpaid charge", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodPost, "/api/bills/"+bill1.ID.String()+"/advance", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var result struct {
			AdvancedCount  int   `json:"advanced_count"`
			AdvancedAmount int64 `json:"advanced_amount"`
		}
		decodeInto(t, raw, &result)
		assert.Equal(t, 3, result.AdvancedCount)
		assert.Equal(t, int64(9000), result.AdvancedAmount)
	})

	t.Run("check reports the shortfall", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodGet, housePath+"/advance/check?amount=2000", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var decision struct {
			Allowed   bool  `json:"allowed"`
			Remaining int64 `json:"remaining"`
			Shortfall int64 `json:"shortfall"`
		}
		decodeInto(t, raw, &decision)
		assert.False(t, decision.Allowed)
		assert.Equal(t, int64(1000), decision.Remaining)
		assert.Equal(t, int64(1000), decision.Shortfall)
	})

	bill2, charges2 := createBill(t, 2000)
	require.Len(t, charges2, 3)

	t.Run("a bill over the remaining allowance is rejected whole", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodPost, "/api/bills/"+bill2.ID.String()+"/advance", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status, string(raw))

		var errResp struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		decodeInto(t, raw, &errResp)
		assert.Equal(t, "unprocessable", errResp.Error.Type)

		var advancedCount int64
		require.NoError(t, env.db.Model(&billdomain.Charge{}).
			Where("bill_id = ? AND advanced = ?", bill2.ID, true).
			Count(&advancedCount).Error)
		assert.Equal(t, int64(0), advancedCount)
	})

	t.Run("settling an advance frees allowance and keeps the books consistent", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodPost, "/api/charges/"+charges1[0].ID.String()+"/settle", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		status, raw = env.doJSON(t, http.MethodGet, housePath+"/advance/usage", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var usage struct {
			OutstandingAdvanced int64 `json:"outstanding_advanced"`
			Remaining           int64 `json:"remaining"`
			TotalRepaid         int64 `json:"total_repaid"`
			AuditConsistent     bool  `json:"audit_consistent"`
		}
		decodeInto(t, raw, &usage)
		assert.Equal(t, int64(6000), usage.OutstandingAdvanced)
		assert.Equal(t, int64(4000), usage.Remaining)
		assert.Equal(t, int64(3000), usage.TotalRepaid)
		assert.True(t, usage.AuditConsistent)
	})

	t.Run("ledger records the advance trail", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodGet, housePath+"/ledger", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var out struct {
			Transactions []ledgerdomain.Transaction `json:"transactions"`
		}
		decodeInto(t, raw, &out)
		// Three advances plus one repayment.
		assert.Len(t, out.Transactions, 4)
	})
}

func TestRiskEndpoints(t *testing.T) {
	env := startEnv(t)

	var house housedomain.House
	status, raw := env.doJSON(t, http.MethodPost, "/api/houses", map[string]any{
		"name":            "Oak Avenue",
		"member_user_ids": []string{env.node.Generate().String(), env.node.Generate().String()},
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	decodeInto(t, raw, &house)
	housePath := "/api/houses/" + house.ID.String()

	t.Run("unscored house has no current index", func(t *testing.T) {
		status, _ := env.doJSON(t, http.MethodGet, housePath+"/risk", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("recompute scores the house and writes history", func(t *testing.T) {
		status, raw := env.doJSON(t, http.MethodPost, housePath+"/risk/recompute", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		var result riskdomain.Result
		decodeInto(t, raw, &result)
		// A house with no charges yet scores exactly at the neutral base.
		assert.Equal(t, 50, result.Score)

		status, raw = env.doJSON(t, http.MethodGet, housePath+"/risk", nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		status, raw = env.doJSON(t, http.MethodGet, housePath+"/risk/history", nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		var history struct {
			History []riskdomain.HouseRiskHistory `json:"history"`
		}
		decodeInto(t, raw, &history)
		assert.Len(t, history.History, 1)
	})

	t.Run("history rejects unknown snapshot types", func(t *testing.T) {
		status, _ := env.doJSON(t, http.MethodGet, housePath+"/risk/history?type=hourly", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("recompute on a missing house is a 404", func(t *testing.T) {
		status, _ := env.doJSON(t, http.MethodPost, "/api/houses/"+env.node.Generate().String()+"/risk/recompute", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestPayChargeGuards(t *testing.T) {
	env := startEnv(t)

	var house housedomain.House
	status, raw := env.doJSON(t, http.MethodPost, "/api/houses", map[string]any{
		"name":            "Pine Court",
		"member_user_ids": []string{env.node.Generate().String(), env.node.Generate().String()},
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	decodeInto(t, raw, &house)

	due := env.clock.Now().AddDate(0, 0, 7)
	status, raw = env.doJSON(t, http.MethodPost, "/api/bills", map[string]any{
		"house_id":     house.ID.String(),
		"total_amount": int64(8000),
		"due_date":     due.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var created struct {
		Charges []billdomain.Charge `json:"charges"`
	}
	decodeInto(t, raw, &created)
	require.Len(t, created.Charges, 2)
	chargePath := "/api/charges/" + created.Charges[0].ID.String() + "/pay"

	status, _ = env.doJSON(t, http.MethodPost, chargePath, nil)
	require.Equal(t, http.StatusOK, status)

	// Paying twice conflicts.
	status, raw = env.doJSON(t, http.MethodPost, chargePath, nil)
	assert.Equal(t, http.StatusConflict, status, string(raw))
}
