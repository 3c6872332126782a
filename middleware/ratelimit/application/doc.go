// Package application contém o caso de uso do rate limit de janela fixa.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, req, policy) retorna uma Decision (allow/deny +
// limit/remaining/reset) ou ErrStoreUnavailable.
package application
