// Package logger expone el logger zap del servicio.
//
// Un único logger global se inicializa en el arranque (Init) y cada request
// HTTP recibe una copia "scoped" con request_id, method y path que viaja en el
// context. Los services lo recuperan con From(ctx); si no hay logger en el
// context se usa el global.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("GrantEngine.Exchange"))
//	log.Info("tokens issued", logger.ClientID(id))
//
// Regla del paquete: nunca loguear secretos, codes ni tokens en claro. Para
// correlacionar usar Fingerprint, que loguea un prefijo del hash.
package logger
