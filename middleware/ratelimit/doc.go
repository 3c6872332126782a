// Package ratelimit fornece o adapter HTTP (net/http) do rate limit de janela fixa.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (whitelist, leitura, incremento atômico, veredito)
//   - infra: Redis/memória, supervisor da conexão, stats
//   - ratelimit (este pacote): middleware HTTP + extração de identidade/rota +
//     tradução da decisão para status/headers
//
// Fluxo por requisição:
//
//  1. Extrai a identidade do cliente (header/XFF/RemoteAddr, "unknown" se vazio)
//  2. Extrai a rota casada (padrão do chi, se houver)
//  3. Chama a camada application para obter a decisão
//  4. Bloqueado: 429 + X-RateLimit-* + Retry-After
//  5. Store indisponível: 500 (nunca libera nem bloqueia por limite)
//  6. Permitido: X-RateLimit-* e chama o próximo handler
//
// As variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_WINDOW_SECONDS, RATE_MAX_REQUESTS e RATE_PER_ROUTE.
package ratelimit
