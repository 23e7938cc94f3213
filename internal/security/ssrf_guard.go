package security

import (
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/hitoshi/mastosync/internal/model"
)

// SSRFGuard はユーザーが指定した外部ホストへのリクエストを保護する。
// フィードプレビューのように任意のインスタンスへ接続する処理で使う。
type SSRFGuard interface {
	// NewSafeClient は接続時に解決後のIPアドレスを検証するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client
	// ValidateURL はDNS解決を伴わない事前検証を行う。
	ValidateURL(rawURL string) error
}

// blockedPrefixes はIPリテラルで指定された場合に拒否する範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// HostGuard は SSRFGuard の実装。
// blockPrivate が false の場合はスキームとホストの形式だけを検証する（ローカル開発用）。
type HostGuard struct {
	blockPrivate bool
}

var _ SSRFGuard = (*HostGuard)(nil)

// NewSSRFGuard は HostGuard を生成する。
func NewSSRFGuard(blockPrivate bool) *HostGuard {
	return &HostGuard{blockPrivate: blockPrivate}
}

// NewSafeClient はHTTPクライアントを生成する。
// blockPrivate が有効な場合、safeurl がダイヤル時にプライベート・ループバック・
// リンクローカル宛ての接続を拒否し、ポートは80/443に限定される。
func (g *HostGuard) NewSafeClient(timeout time.Duration) *http.Client {
	if !g.blockPrivate {
		return &http.Client{Timeout: timeout}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateURL はURLを検証する。
// 形式が不正なら INVALID_REQUEST、禁止されたホストなら SSRF_BLOCKED を返す。
func (g *HostGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return model.NewInvalidRequestError("URLが空です")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidRequestError("URLを解析できません")
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return model.NewInvalidRequestError("http または https のURLを指定してください")
	}

	host := parsed.Hostname()
	if host == "" {
		return model.NewInvalidRequestError("URLにホストがありません")
	}
	if !g.blockPrivate {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return model.NewSSRFBlockedError()
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".internal") {
		return model.NewSSRFBlockedError()
	}
	return nil
}
