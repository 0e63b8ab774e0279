package ethereum

// ArbitrageABI is the executor contract's entry point. The contract buys token with amountIn of
// quote on buyRouter, sells it on sellRouter and reverts unless at least minReturn comes back.
const ArbitrageABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "address", "name": "quote", "type": "address"},
			{"internalType": "address", "name": "buyRouter", "type": "address"},
			{"internalType": "address", "name": "sellRouter", "type": "address"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "minReturn", "type": "uint256"}
		],
		"name": "executeArbitrage",
		"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
