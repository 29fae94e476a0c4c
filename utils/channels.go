package utils

import "log"

// ConsumeChannel drains c so its producer never blocks on an abandoned consumer
func ConsumeChannel[T any](c <-chan T) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.Println("ERROR|CHANNEL|CONSUME", err)
	}()
	for range c {
	}
}
