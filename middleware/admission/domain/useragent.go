package domain

import "strings"

// Assinaturas de clientes automatizados (ferramentas de linha de comando,
// browsers headless, scanners de segurança, clients HTTP de linguagens de
// script, crawlers). Comparação por substring, caso-insensível.
var defaultBotSignatures = []string{
	"bot", "crawler", "spider", "scraper",
	"curl", "wget", "python", "java", "perl", "ruby", "go-http",
	"scrapy", "mechanize", "headless", "phantom", "selenium", "webdriver",
	"postman", "insomnia", "apache-httpclient", "okhttp", "libwww-perl",
	"masscan", "nmap", "nikto", "sqlmap", "dirbuster", "gobuster",
	"burp", "zap", "nessus", "openvas", "acunetix", "netsparker",
	"appscan", "qualys", "rapid7", "metasploit", "havij", "pangolin",
	"sqlsus", "sqlninja", "w3af", "skipfish", "wapiti", "arachni",
	"lynx", "links", "w3m",
}

// Tokens que browsers legítimos sempre carregam no User-Agent.
var defaultBrowserTokens = []string{
	"mozilla", "chrome", "safari", "edge", "firefox", "opera", "msie",
}

// UserAgentClassifier decide se um User-Agent parece tráfego automatizado.
//
// É heurística, não fronteira de segurança: um sinal entre vários no pipeline.
type UserAgentClassifier struct {
	BotSignatures []string
	BrowserTokens []string
}

// DefaultUserAgentClassifier retorna o classificador com as listas padrão.
func DefaultUserAgentClassifier() UserAgentClassifier {
	return UserAgentClassifier{
		BotSignatures: defaultBotSignatures,
		BrowserTokens: defaultBrowserTokens,
	}
}

// IsAutomated classifica o User-Agent.
//
// Política fail closed: ausência de UA é automatizado; UA que não bate em
// nenhuma das listas também (agente desconhecido, sem cara de browser, é
// suspeito). Só a presença de token de browser sem assinatura de bot limpa
// a classificação.
func (c UserAgentClassifier) IsAutomated(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}

	for _, sig := range c.BotSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}

	for _, token := range c.BrowserTokens {
		if strings.Contains(ua, token) {
			return false
		}
	}

	return true
}
