// Package detectmw provides HTTP middleware that identifies the calling
// device with a detector.Engine.
//
//	r := chi.NewRouter()
//	r.Use(detectmw.Middleware(engine))
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//		if dev, ok := detectmw.FromContext(r.Context()); ok {
//			isMobile, _ := dev.VirtualCapability("is_mobile")
//			// ...
//		}
//	})
//
// The device lives for the duration of the request only. Requests without
// any important header pass through without a device unless WithRequired
// is set. LoggerExtractor plugs the device id into logger.WithContextExtractors.
package detectmw
