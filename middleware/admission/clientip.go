package admission

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Header da borda com o IP de conexão original (preenchido pela Cloudflare).
// É o único header de proxy confiado com prioridade máxima.
const edgeIPHeader = "CF-Connecting-IP"

// Headers de forwarding consultados em ordem quando a borda não informou.
// No X-Forwarded-For vale só o primeiro token (o cliente original).
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "X-Client-IP"}

// Sentinela quando nenhuma fonte rendeu um endereço válido.
const unknownIP = "0.0.0.0"

// RealClientIP extrai o melhor palpite do IP real do cliente.
//
// Proxies não são confiados por padrão, exceto a camada de borda designada:
// cada candidato de header precisa ser um IP público bem formado, senão é
// pulado (defesa contra header forjado com faixa privada). Sem candidato
// válido, cai no endereço do peer da conexão e, em último caso, no
// sentinela — nunca retorna erro.
func RealClientIP(r *http.Request, trustProxies bool) string {
	if trustProxies {
		if ip, ok := publicIP(r.Header.Get(edgeIPHeader)); ok {
			return ip
		}
		for _, h := range forwardingHeaders {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			candidate := strings.TrimSpace(strings.Split(v, ",")[0])
			if ip, ok := publicIP(candidate); ok {
				return ip
			}
		}
	}

	// peer da conexão: aceito mesmo privado (atrás de LB o peer é interno,
	// mas ainda é um identificador utilizável para rate limit).
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.RemoteAddr)); err == nil {
		return addr.String()
	}

	return unknownIP
}

// publicIP valida o candidato como IP público (não privado, não reservado).
func publicIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return "", false
	}
	return addr.String(), true
}
