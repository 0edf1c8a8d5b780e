package webapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	disputesvc "github.com/buildrail/escrow/pkg/service/dispute"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	payoutsvc "github.com/buildrail/escrow/pkg/service/payout"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	reconcilesvc "github.com/buildrail/escrow/pkg/service/reconcile"
	"github.com/buildrail/escrow/pkg/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type ApiTestSuite struct {
	suite.Suite
	env *testutils.Env
	app *fiber.App
}

func (s *ApiTestSuite) SetupTest() {
	s.env = testutils.NewEnv()
	svcs := Services{
		Escrow:    escrowsvc.NewService(s.env.Deps),
		Milestone: milestonesvc.NewService(s.env.Deps),
		Dispute:   disputesvc.NewService(s.env.Deps),
		Payout:    payoutsvc.NewService(s.env.Deps),
		Project:   projectsvc.NewService(s.env.Deps),
		Reconcile: reconcilesvc.NewService(s.env.Deps),
	}
	s.app = NewApp(svcs, s.env.Deps.Config)
}

func (s *ApiTestSuite) signToken(secret string, sub uuid.UUID) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	s.Require().NoError(err)
	return signed
}

func (s *ApiTestSuite) makeRequest(method, target, body, token string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

func (s *ApiTestSuite) decodeResponse(resp *http.Response) Response {
	defer resp.Body.Close() //nolint:errcheck
	var out Response
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *ApiTestSuite) TestRootIsPublic() {
	resp := s.makeRequest("GET", "/", "", "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

func (s *ApiTestSuite) TestAuthGuards() {
	resp := s.makeRequest("GET", "/payouts", "", "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))

	forged := s.signToken("wrong-secret", uuid.New())
	resp = s.makeRequest("GET", "/payouts", "", forged)
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))
}

func (s *ApiTestSuite) TestProjectLifecycle() {
	owner := uuid.New()
	token := s.signToken("test-secret", owner)

	resp := s.makeRequest("POST", "/project", `{"title":"garden wall","currency":"USD"}`, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	body := s.decodeResponse(resp)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok)
	projectID, ok := data["ID"].(string)
	s.Require().True(ok)
	s.Require().NotEmpty(projectID)

	contractor := uuid.New()
	resp = s.makeRequest("POST", "/project/"+projectID+"/award",
		fmt.Sprintf(`{"contractor_id":%q}`, contractor), token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("POST", "/project/"+projectID+"/activate",
		`{"milestones":[{"title":"foundation","amount":50000},{"title":"walls","amount":75000}]}`, token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("GET", "/project/"+projectID, "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body = s.decodeResponse(resp)
	data, ok = body.Data.(map[string]any)
	s.Require().True(ok)
	s.Equal("active", data["Status"])
}

func (s *ApiTestSuite) TestDepositAndBalance() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)
	accountID := ledger.AccountID.String()

	resp := s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":100000,"idempotency_key":"dep-1"}`, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("GET", "/escrow/"+accountID+"/balance", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body := s.decodeResponse(resp)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok)
	s.Equal(float64(100000), data["available"])
	s.Equal(float64(100000), data["total_deposited"])
}

func (s *ApiTestSuite) TestDepositValidation() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)
	accountID := ledger.AccountID.String()

	// amount must be positive
	resp := s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":0,"idempotency_key":"dep-1"}`, token)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// idempotency key is mandatory
	resp = s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":1000}`, token)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// path parameter must be a UUID
	resp = s.makeRequest("POST", "/escrow/not-a-uuid/deposit",
		`{"amount":1000,"idempotency_key":"dep-1"}`, token)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// unknown accounts come back as 404
	resp = s.makeRequest("POST", "/escrow/"+uuid.NewString()+"/deposit",
		`{"amount":1000,"idempotency_key":"dep-1"}`, token)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func (s *ApiTestSuite) TestReleaseOverHTTP() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000, 75000)
	token := s.signToken("test-secret", ledger.OwnerID)
	accountID := ledger.AccountID.String()

	resp := s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":80000,"idempotency_key":"dep-1"}`, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	testutils.ReadyMilestone(s.T(), s.env, ledger, ledger.MilestoneIDs[0])
	testutils.ReadyMilestone(s.T(), s.env, ledger, ledger.MilestoneIDs[1])

	releaseBody := fmt.Sprintf(
		`{"milestone_id":%q,"amount":50000,"bank_account":"acct_99","idempotency_key":"rel-1"}`,
		ledger.MilestoneIDs[0])
	resp = s.makeRequest("POST", "/escrow/"+accountID+"/release", releaseBody, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// a second release of the same milestone under a fresh key conflicts
	retryBody := fmt.Sprintf(
		`{"milestone_id":%q,"amount":50000,"bank_account":"acct_99","idempotency_key":"rel-2"}`,
		ledger.MilestoneIDs[0])
	resp = s.makeRequest("POST", "/escrow/"+accountID+"/release", retryBody, token)
	s.Equal(fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// the second milestone exceeds what is left in escrow
	shortBody := fmt.Sprintf(
		`{"milestone_id":%q,"amount":75000,"bank_account":"acct_99","idempotency_key":"rel-3"}`,
		ledger.MilestoneIDs[1])
	resp = s.makeRequest("POST", "/escrow/"+accountID+"/release", shortBody, token)
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func (s *ApiTestSuite) TestDisputeGateOverHTTP() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)
	projectID := ledger.ProjectID.String()

	s.makeRequest("POST", "/escrow/"+ledger.AccountID.String()+"/deposit",
		`{"amount":60000,"idempotency_key":"dep-1"}`, token).Body.Close() //nolint:errcheck
	testutils.ReadyMilestone(s.T(), s.env, ledger, ledger.MilestoneIDs[0])

	resp := s.makeRequest("POST", "/project/"+projectID+"/dispute",
		`{"reason":"work does not match the agreed scope"}`, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	body := s.decodeResponse(resp)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok)
	disputeID, ok := data["ID"].(string)
	s.Require().True(ok)

	// releases are gated while the dispute is open
	releaseBody := fmt.Sprintf(
		`{"milestone_id":%q,"amount":50000,"bank_account":"acct_99","idempotency_key":"rel-1"}`,
		ledger.MilestoneIDs[0])
	resp = s.makeRequest("POST", "/escrow/"+ledger.AccountID.String()+"/release", releaseBody, token)
	s.Equal(fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("POST", "/dispute/"+disputeID+"/resolve", `{"outcome":"dismissed"}`, token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("POST", "/escrow/"+ledger.AccountID.String()+"/release", releaseBody, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func (s *ApiTestSuite) TestProjectLedgerAndAudit() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)

	s.makeRequest("POST", "/escrow/"+ledger.AccountID.String()+"/deposit",
		`{"amount":100000,"idempotency_key":"dep-1"}`, token).Body.Close() //nolint:errcheck

	resp := s.makeRequest("GET", "/project/"+ledger.ProjectID.String()+"/ledger", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body := s.decodeResponse(resp)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok)
	s.NotNil(data["Balance"])
	s.NotNil(data["Transactions"])

	resp = s.makeRequest("GET", "/project/"+ledger.ProjectID.String()+"/audit", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func (s *ApiTestSuite) TestVerifyEndpoint() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)
	accountID := ledger.AccountID.String()

	s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":100000,"idempotency_key":"dep-1"}`, token).Body.Close() //nolint:errcheck

	resp := s.makeRequest("POST", "/escrow/"+accountID+"/verify", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func (s *ApiTestSuite) TestPayoutWorkflowOverHTTP() {
	ledger := testutils.SeedActiveProject(s.T(), s.env, "USD", 50000)
	token := s.signToken("test-secret", ledger.OwnerID)
	accountID := ledger.AccountID.String()

	s.makeRequest("POST", "/escrow/"+accountID+"/deposit",
		`{"amount":60000,"idempotency_key":"dep-1"}`, token).Body.Close() //nolint:errcheck
	testutils.ReadyMilestone(s.T(), s.env, ledger, ledger.MilestoneIDs[0])

	releaseBody := fmt.Sprintf(
		`{"milestone_id":%q,"amount":50000,"bank_account":"acct_99","idempotency_key":"rel-1"}`,
		ledger.MilestoneIDs[0])
	resp := s.makeRequest("POST", "/escrow/"+accountID+"/release", releaseBody, token)
	s.Equal(fiber.StatusCreated, resp.StatusCode)
	body := s.decodeResponse(resp)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok)
	payoutData, ok := data["Payout"].(map[string]any)
	s.Require().True(ok)
	payoutID, ok := payoutData["ID"].(string)
	s.Require().True(ok)

	resp = s.makeRequest("POST", "/payout/"+payoutID+"/approve", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = s.makeRequest("POST", "/payout/"+payoutID+"/dispatch", "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body = s.decodeResponse(resp)
	data, ok = body.Data.(map[string]any)
	s.Require().True(ok)
	s.Equal("completed", data["Status"])
}

func TestApiTestSuite(t *testing.T) {
	suite.Run(t, new(ApiTestSuite))
}
