// Package admission fornece adapters HTTP (net/http) para o controle de
// admissão do serviço de formulários.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (pipeline de admissão, cadeia geo,
//     acquire/timeout) sem net/http
//   - infra: implementações concretas (contadores de janela fixa em memória
//     e Redis, estratégias geo, semáforo), detalhes de infraestrutura
//   - admission (este pacote): middlewares HTTP + montagem do RequestContext
//     (IP real, transporte, tenant) + tradução do veredito para status/headers
//
// Fluxo no gateway:
//
//  1. Monta o RequestContext da requisição (IP real, headers, tenant)
//  2. Chama a camada application para obter o veredito
//  3. Se recusado, responde 403/405/429 (+ Retry-After quando rate limit)
//  4. Se admitido, chama o próximo handler (ex: composição do e-mail)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_IP_LIMIT, ALLOWED_COUNTRY e CONCURRENCY_MAX.
package admission
