package chain

// Minimal ABI fragments for the contracts the gateway talks to. Parsed once
// at construction; kept as JSON so the call surface is auditable at a glance.

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

const routerV2ABI = `[
	{"constant":true,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"type":"function"}
]`

const limitOrderABI = `[
	{"inputs":[
		{"components":[
			{"internalType":"uint256","name":"salt","type":"uint256"},
			{"internalType":"uint256","name":"maker","type":"uint256"},
			{"internalType":"uint256","name":"receiver","type":"uint256"},
			{"internalType":"uint256","name":"makerAsset","type":"uint256"},
			{"internalType":"uint256","name":"takerAsset","type":"uint256"},
			{"internalType":"uint256","name":"makingAmount","type":"uint256"},
			{"internalType":"uint256","name":"takingAmount","type":"uint256"},
			{"internalType":"uint256","name":"makerTraits","type":"uint256"}
		],"internalType":"struct OrderLib.Order","name":"order","type":"tuple"},
		{"internalType":"bytes32","name":"r","type":"bytes32"},
		{"internalType":"bytes32","name":"vs","type":"bytes32"},
		{"internalType":"uint256","name":"amount","type":"uint256"},
		{"internalType":"uint256","name":"takerTraits","type":"uint256"},
		{"internalType":"bytes","name":"args","type":"bytes"}
	],
	"name":"fillOrderArgs",
	"outputs":[
		{"internalType":"uint256","name":"","type":"uint256"},
		{"internalType":"uint256","name":"","type":"uint256"},
		{"internalType":"bytes32","name":"","type":"bytes32"}
	],
	"stateMutability":"payable","type":"function"}
]`
