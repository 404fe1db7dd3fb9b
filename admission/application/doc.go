// Package application contém os casos de uso da admissão de anúncios.
//
// Depende apenas de domain e não conhece net/http nem drivers.
// O Engine roda um pipeline ordenado de estágios (validação, identidade,
// rate limit, duplicatas, cota, persistência); cada estágio passa ou rejeita
// com um *domain.Rejection, e a primeira rejeição encerra a tentativa.
package application
