package main

import (
	"fmt"
	"log"

	"github.com/smarttransit/bus-reservation-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the bus reservation API")
	fmt.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTAccess)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", secrets.JWTRefresh)
	fmt.Println()
	fmt.Println("Sandbox only; production uses the secret issued by VNPay:")
	fmt.Printf("VNPAY_HASH_SECRET=%s\n", secrets.VNPayHash)
	fmt.Println()
	fmt.Println("Keep these secrets out of version control.")
	fmt.Println("===========================================")
}
