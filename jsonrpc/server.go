package jsonrpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"contribook/audit"
	"contribook/chain"
	"contribook/errors"
	"contribook/exception"
	"contribook/logx"
	"contribook/monitoring"
	"contribook/reputation"
	"contribook/security"
	"contribook/store"
	"contribook/types"
	"contribook/verification"
)

// --- Error type used by handlers ---

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var rpcCodeByLedgerCode = map[errors.LedgerErrorCode]int{
	errors.ErrCodeInvalidRequest:         -32602,
	errors.ErrCodeChainConflict:          -32001,
	errors.ErrCodeChainFrozen:            -32002,
	errors.ErrCodeTeamFrozen:             -32002,
	errors.ErrCodeSelfVerificationDenied: -32003,
	errors.ErrCodeAlreadyActed:           -32004,
	errors.ErrCodeIntegrityViolation:     -32005,
	errors.ErrCodeContributionNotFound:   -32010,
	errors.ErrCodeTeamNotFound:           -32011,
	errors.ErrCodeBlockNotFound:          -32012,
	errors.ErrCodeInternal:               -32603,
}

func toRPCError(err error) *rpcError {
	var ledgerErr *errors.LedgerError
	if errors.As(err, &ledgerErr) {
		code, ok := rpcCodeByLedgerCode[ledgerErr.Code]
		if !ok {
			code = -32603
		}
		return &rpcError{Code: code, Message: ledgerErr.Message, Data: ledgerErr}
	}
	return &rpcError{Code: -32603, Message: err.Error()}
}

func toJRPC2Error(e *rpcError) error {
	if e == nil {
		return nil
	}
	if e.Data != nil {
		return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message).WithData(e.Data)
	}
	return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message)
}

// --- Params/Results ---

type submitParams struct {
	TeamID         string `json:"team_id"`
	ContributionID string `json:"contribution_id,omitempty"`
	ContributorID  string `json:"contributor_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	ContentBase64  string `json:"content_base64,omitempty"`
	ContentHash    string `json:"content_hash,omitempty"`
}

type submitResponse struct {
	ContributionID string `json:"contribution_id"`
	Sequence       uint64 `json:"sequence"`
	BlockHash      string `json:"block_hash"`
	ContentHash    string `json:"content_hash,omitempty"`
}

type verifyParams struct {
	ContributionID string `json:"contribution_id"`
	VerifierID     string `json:"verifier_id"`
	Role           string `json:"role"`
	Comment        string `json:"comment,omitempty"`
}

type flagParams struct {
	ContributionID string `json:"contribution_id"`
	FlaggerID      string `json:"flagger_id"`
	Reason         string `json:"reason,omitempty"`
}

type tallyParams struct {
	ContributionID string `json:"contribution_id"`
}

type tallyResponse struct {
	ContributionID    string `json:"contribution_id"`
	VerificationCount uint64 `json:"verification_count"`
	FlagCount         uint64 `json:"flag_count"`
	ContributorScore  int64  `json:"contributor_score"`
}

type historyParams struct {
	TeamID         string `json:"team_id"`
	ContributionID string `json:"contribution_id"`
}

type historyResponse struct {
	ContributionID string         `json:"contribution_id"`
	Blocks         []*chain.Block `json:"blocks"`
}

type reputationParams struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

type leaderboardParams struct {
	TeamID string `json:"team_id"`
}

type leaderboardResponse struct {
	TeamID  string                   `json:"team_id"`
	Entries []*types.ReputationScore `json:"entries"`
}

type chainGetParams struct {
	TeamID       string `json:"team_id"`
	FromSequence uint64 `json:"from_sequence"`
	Limit        int    `json:"limit"`
}

type chainGetResponse struct {
	TeamID string         `json:"team_id"`
	Blocks []*chain.Block `json:"blocks"`
}

type chainTipParams struct {
	TeamID string `json:"team_id"`
}

type chainTipResponse struct {
	TeamID    string `json:"team_id"`
	Sequence  uint64 `json:"sequence"`
	BlockHash string `json:"block_hash"`
	Frozen    bool   `json:"frozen"`
}

type auditParams struct {
	TeamID string `json:"team_id"`
}

type teamParams struct {
	TeamID string `json:"team_id"`
}

type teamActionResponse struct {
	TeamID string `json:"team_id"`
	Ok     bool   `json:"ok"`
}

// --- Server ---

type Server struct {
	addr        string
	coordinator *verification.Coordinator
	engine      *reputation.Engine
	ledger      store.LedgerStore
	auditor     *audit.Auditor
	sealer      *security.Sealer
	filesDir    string
	corsConfig  CORSConfig
	httpServer  *http.Server
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(
	addr string,
	coordinator *verification.Coordinator,
	engine *reputation.Engine,
	ledger store.LedgerStore,
	auditor *audit.Auditor,
	sealer *security.Sealer,
	filesDir string,
) *Server {
	return &Server{
		addr:        addr,
		coordinator: coordinator,
		engine:      engine,
		ledger:      ledger,
		auditor:     auditor,
		sealer:      sealer,
		filesDir:    filesDir,
	}
}

func (s *Server) Start() {
	methods := s.buildMethodMap()
	jh := jhttp.NewBridge(methods, &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		jh.ServeHTTP(w, r)
	}))
	monitoring.RegisterMetrics(mux)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	exception.SafeGo("jsonrpc-server", func() {
		logx.Info("JSONRPC", "Serving on ", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("JSONRPC", "Server stopped: ", err)
		}
	})
}

// Stop shuts the HTTP listener down, draining in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		"contribution.submit": handler.New(func(ctx context.Context, p submitParams) (*submitResponse, error) {
			res, err := s.rpcSubmit(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*submitResponse), nil
		}),
		"contribution.verify": handler.New(func(ctx context.Context, p verifyParams) (*tallyResponse, error) {
			res, err := s.rpcVerify(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*tallyResponse), nil
		}),
		"contribution.flag": handler.New(func(ctx context.Context, p flagParams) (*tallyResponse, error) {
			res, err := s.rpcFlag(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*tallyResponse), nil
		}),
		"contribution.tally": handler.New(func(ctx context.Context, p tallyParams) (*tallyResponse, error) {
			res, err := s.rpcTally(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*tallyResponse), nil
		}),
		"contribution.history": handler.New(func(ctx context.Context, p historyParams) (*historyResponse, error) {
			res, err := s.rpcHistory(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*historyResponse), nil
		}),
		"reputation.get": handler.New(func(ctx context.Context, p reputationParams) (*types.ReputationScore, error) {
			res, err := s.rpcReputation(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*types.ReputationScore), nil
		}),
		"reputation.leaderboard": handler.New(func(ctx context.Context, p leaderboardParams) (*leaderboardResponse, error) {
			res, err := s.rpcLeaderboard(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*leaderboardResponse), nil
		}),
		"chain.get": handler.New(func(ctx context.Context, p chainGetParams) (*chainGetResponse, error) {
			res, err := s.rpcChainGet(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*chainGetResponse), nil
		}),
		"chain.tip": handler.New(func(ctx context.Context, p chainTipParams) (*chainTipResponse, error) {
			res, err := s.rpcChainTip(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*chainTipResponse), nil
		}),
		"chain.audit": handler.New(func(ctx context.Context, p auditParams) (*audit.ValidationResult, error) {
			res, err := s.rpcAudit(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*audit.ValidationResult), nil
		}),
		"team.freeze": handler.New(func(ctx context.Context, p teamParams) (*teamActionResponse, error) {
			res, err := s.rpcFreeze(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*teamActionResponse), nil
		}),
		"team.unfreeze": handler.New(func(ctx context.Context, p teamParams) (*teamActionResponse, error) {
			res, err := s.rpcUnfreeze(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res.(*teamActionResponse), nil
		}),
	}
}

// --- Implementations ---

func (s *Server) rpcSubmit(p submitParams) (interface{}, *rpcError) {
	contentHash := p.ContentHash
	if p.ContentBase64 != "" {
		content, err := base64.StdEncoding.DecodeString(p.ContentBase64)
		if err != nil {
			return nil, toRPCError(errors.NewError(errors.ErrCodeInvalidRequest, "content_base64 is not valid base64"))
		}
		contentHash = security.HashContent(content)
		if err := s.storeContent(contentHash, content); err != nil {
			return nil, toRPCError(err)
		}
	}

	block, err := s.coordinator.Submit(
		p.TeamID,
		p.ContributionID,
		p.ContributorID,
		types.ContributionType(p.Type),
		p.Title,
		contentHash,
	)
	if err != nil {
		return nil, toRPCError(err)
	}

	return &submitResponse{
		ContributionID: block.ContributionID,
		Sequence:       block.Sequence,
		BlockHash:      fmt.Sprintf("%x", block.BlockHash),
		ContentHash:    contentHash,
	}, nil
}

func (s *Server) rpcVerify(p verifyParams) (interface{}, *rpcError) {
	role := types.Role(p.Role)
	if role == "" {
		role = types.RoleMember
	}
	tally, err := s.coordinator.Verify(p.ContributionID, p.VerifierID, role, p.Comment)
	if err != nil {
		return nil, toRPCError(err)
	}
	return tallyToResponse(tally), nil
}

func (s *Server) rpcFlag(p flagParams) (interface{}, *rpcError) {
	tally, err := s.coordinator.Flag(p.ContributionID, p.FlaggerID, p.Reason)
	if err != nil {
		return nil, toRPCError(err)
	}
	return tallyToResponse(tally), nil
}

func (s *Server) rpcTally(p tallyParams) (interface{}, *rpcError) {
	tally, err := s.coordinator.Tally(p.ContributionID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return tallyToResponse(tally), nil
}

func (s *Server) rpcHistory(p historyParams) (interface{}, *rpcError) {
	blocks, err := s.ledger.GetBlocksByContribution(p.TeamID, p.ContributionID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &historyResponse{ContributionID: p.ContributionID, Blocks: blocks}, nil
}

func (s *Server) rpcReputation(p reputationParams) (interface{}, *rpcError) {
	score, err := s.engine.Score(p.TeamID, p.UserID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return score, nil
}

func (s *Server) rpcLeaderboard(p leaderboardParams) (interface{}, *rpcError) {
	entries, err := s.engine.Leaderboard(p.TeamID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &leaderboardResponse{TeamID: p.TeamID, Entries: entries}, nil
}

func (s *Server) rpcChainGet(p chainGetParams) (interface{}, *rpcError) {
	limit := p.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	blocks, err := s.ledger.GetChain(p.TeamID, p.FromSequence, limit)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &chainGetResponse{TeamID: p.TeamID, Blocks: blocks}, nil
}

func (s *Server) rpcChainTip(p chainTipParams) (interface{}, *rpcError) {
	tip, err := s.ledger.GetTip(p.TeamID)
	if err != nil {
		return nil, toRPCError(err)
	}
	if tip == nil {
		return nil, toRPCError(errors.ErrTeamNotFound)
	}
	frozen, err := s.ledger.IsFrozen(p.TeamID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &chainTipResponse{
		TeamID:    p.TeamID,
		Sequence:  tip.Sequence,
		BlockHash: fmt.Sprintf("%x", tip.BlockHash),
		Frozen:    frozen,
	}, nil
}

func (s *Server) rpcAudit(p auditParams) (interface{}, *rpcError) {
	result, err := s.auditor.VerifyChain(p.TeamID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return result, nil
}

func (s *Server) rpcFreeze(p teamParams) (interface{}, *rpcError) {
	if err := s.coordinator.Freeze(p.TeamID); err != nil {
		return nil, toRPCError(err)
	}
	return &teamActionResponse{TeamID: p.TeamID, Ok: true}, nil
}

func (s *Server) rpcUnfreeze(p teamParams) (interface{}, *rpcError) {
	if err := s.coordinator.Unfreeze(p.TeamID); err != nil {
		return nil, toRPCError(err)
	}
	return &teamActionResponse{TeamID: p.TeamID, Ok: true}, nil
}

// --- Helpers ---

// storeContent writes uploaded content under its hash, sealed when a master
// key is configured
func (s *Server) storeContent(contentHash string, content []byte) error {
	if s.filesDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.filesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create files dir: %w", err)
	}

	data := content
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(content)
		if err != nil {
			return err
		}
		data = sealed
	}
	return os.WriteFile(filepath.Join(s.filesDir, contentHash), data, 0o644)
}

func tallyToResponse(t *types.Tally) *tallyResponse {
	return &tallyResponse{
		ContributionID:    t.ContributionID,
		VerificationCount: t.VerificationCount,
		FlagCount:         t.FlagCount,
		ContributorScore:  t.ContributorScore,
	}
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
	}
}

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	methods := os.Getenv("CORS_ALLOWED_METHODS")
	headers := os.Getenv("CORS_ALLOWED_HEADERS")
	maxAgeStr := os.Getenv("CORS_MAX_AGE")

	var maxAge int
	if maxAgeStr != "" {
		if v, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = v
		}
	}

	var allowedOrigins, allowedMethods, allowedHeaders []string
	if origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}
	if methods != "" {
		allowedMethods = splitAndTrim(methods)
	}
	if headers != "" {
		allowedHeaders = splitAndTrim(headers)
	}

	provided := len(allowedOrigins) > 0 || len(allowedMethods) > 0 || len(allowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}

	return CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: allowedMethods,
		AllowedHeaders: allowedHeaders,
		MaxAge:         maxAge,
	}, true
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
